package app

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "radiowalk/backend/libs/redis"
	"radiowalk/backend/services/stations-service/internal/config"
	"radiowalk/backend/services/stations-service/internal/db"
	httpserver "radiowalk/backend/services/stations-service/internal/http"
	"radiowalk/backend/services/stations-service/internal/http/handlers"
	redisstore "radiowalk/backend/services/stations-service/internal/redis"
	"radiowalk/backend/services/stations-service/internal/repository"
	"radiowalk/backend/services/stations-service/internal/service"
	"radiowalk/backend/services/stations-service/internal/ws"
)

// App wires stations-service dependencies.
type App struct {
	server      *httpserver.Server
	wsManager   *ws.Manager
	wsServer    *ws.Server
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx, sqlDB, logger); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	var (
		redisClient *redis.Client
		cache       service.StationCache
	)
	if cfg.CacheEnabled() {
		redisClient, err = libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		cache = redisstore.NewStationCache(redisClient, cfg.CacheTTL())
	} else {
		logger.Info("station cache disabled")
	}

	stationRepo := repository.NewStationRepository(sqlDB)
	userRepo := repository.NewUserRepository(sqlDB)

	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.TokenTTL())
	stations := service.NewStationService(stationRepo, userRepo, cache, logger)
	proximity := service.NewProximityService(stations, logger)
	users := service.NewUserService(userRepo, stationRepo, tokens, logger)
	streams := service.NewStreamValidator(&http.Client{}, cfg.StreamCheckTimeout(), logger)

	wsManager := ws.NewManager(cfg.WSPingInterval())
	wsServer := ws.NewServer(wsManager, ws.NewNearbyProcessor(proximity), cfg.WSWriteTimeout(), logger)

	routes := httpserver.Routes{
		Stations:    handlers.NewStationsHandler(stations, proximity, streams, logger),
		Users:       handlers.NewUsersHandler(users, logger),
		SignIn:      handlers.NewSignInHandler(users, logger),
		Health:      handlers.NewHealthHandler(sqlDB),
		NearbyFeed:  wsServer.HandleWS,
		Tokens:      tokens,
		InternalKey: cfg.Auth.InternalAPIKey,
	}

	router := httpserver.NewRouter(routes, logger)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		wsManager:   wsManager,
		wsServer:    wsServer,
		db:          sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the websocket ping loop and the HTTP server. Open feeds are closed as soon as ctx
// is cancelled; hijacked connections are not drained by the HTTP shutdown.
func (a *App) Run(ctx context.Context) error {
	go a.wsManager.Start(ctx)
	stop := context.AfterFunc(ctx, a.wsServer.Shutdown)
	defer stop()

	err := a.server.Run(ctx)
	a.wsServer.Shutdown()
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
