package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/models"
	redisstore "radiowalk/backend/services/stations-service/internal/redis"
	"radiowalk/backend/services/stations-service/internal/testutil"
)

// fixture wires the services against an in-memory store and a miniredis-backed cache.
type fixture struct {
	store     *testutil.Store
	redis     *miniredis.Miniredis
	stations  *StationService
	proximity *ProximityService
	users     *UserService
	tokens    *TokenService

	x, y, z string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zap.NewNop()
	cache := redisstore.NewStationCache(client, time.Minute)
	stations := NewStationService(store, store.Users(), cache, logger)
	tokens := NewTokenService("test-secret", time.Hour)

	f := &fixture{
		store:     store,
		redis:     mr,
		stations:  stations,
		proximity: NewProximityService(stations, logger),
		users:     NewUserService(store.Users(), store, tokens, logger),
		tokens:    tokens,
	}
	f.x = f.addUser("xavier")
	f.y = f.addUser("yara")
	f.z = f.addUser("zoe")
	return f
}

func (f *fixture) addUser(username string) string {
	id := uuid.NewString()
	f.store.AddUser(models.User{ID: id, Username: username, Email: username + "@example.com"})
	return id
}

func (f *fixture) create(t *testing.T, owner, name string, lat, lon float64, visibility models.Visibility) *models.Station {
	t.Helper()
	station, err := f.stations.Create(context.Background(), owner, models.StationInput{
		Name:       name,
		Latitude:   lat,
		Longitude:  lon,
		Visibility: visibility,
		StreamLink: "https://stream.example.com/" + name,
	})
	require.NoError(t, err)
	return station
}

func (f *fixture) privateSharedWithY(t *testing.T) *models.Station {
	t.Helper()
	station := f.create(t, f.x, "hideout", 37.7849, -122.4194, models.VisibilityPrivate)
	_, err := f.stations.Share(context.Background(), station.ID, f.x, f.y)
	require.NoError(t, err)
	return station
}
