package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"radiowalk/backend/libs/geo"
	"radiowalk/backend/libs/logging"
	"radiowalk/backend/services/stations-service/internal/config"
	"radiowalk/backend/services/stations-service/internal/db"
	"radiowalk/backend/services/stations-service/internal/repository"
	"radiowalk/backend/services/stations-service/internal/service"
)

func main() {
	lat := flag.Float64("lat", 37.7749, "origin latitude")
	lon := flag.Float64("lon", -122.4194, "origin longitude")
	filler := flag.Int("filler", 20, "number of random filler stations")
	seed := flag.Int64("seed", 42, "faker seed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger("seed-stations")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sqlDB, err := db.NewPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, logger); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}

	stationRepo := repository.NewStationRepository(sqlDB)
	userRepo := repository.NewUserRepository(sqlDB)
	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.TokenTTL())
	stations := service.NewStationService(stationRepo, userRepo, nil, logger)
	users := service.NewUserService(userRepo, stationRepo, tokens, logger)

	owner, ownerToken, err := users.SignIn(ctx, "owner@radiowalk.local", "Station Owner")
	if err != nil {
		logger.Fatal("failed to seed owner", zap.Error(err))
	}
	listener, listenerToken, err := users.SignIn(ctx, "listener@radiowalk.local", "Night Listener")
	if err != nil {
		logger.Fatal("failed to seed listener", zap.Error(err))
	}

	origin := geo.Point{Lat: *lat, Lon: *lon}
	created := 0
	for _, st := range stationMatrix(origin, gofakeit.New(*seed), *filler) {
		station, err := stations.Create(ctx, owner.ID, st.input)
		if err != nil {
			logger.Fatal("failed to seed station", zap.String("name", st.input.Name), zap.Error(err))
		}
		created++
		if st.share {
			if _, err := stations.Share(ctx, station.ID, owner.ID, listener.ID); err != nil {
				logger.Fatal("failed to share station", zap.String("station_id", station.ID), zap.Error(err))
			}
		}
	}

	logger.Info("seed complete",
		zap.Int("stations", created),
		zap.String("owner_id", owner.ID),
		zap.String("listener_id", listener.ID))
	fmt.Printf("owner token:    %s\nlistener token: %s\n", ownerToken, listenerToken)
}
