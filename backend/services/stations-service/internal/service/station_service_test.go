package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/models"
	redisstore "radiowalk/backend/services/stations-service/internal/redis"
	"radiowalk/backend/services/stations-service/internal/testutil"
)

func TestStationService_CreateThenGetRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.stations.Create(ctx, f.x, models.StationInput{
		Name:       "  Bay Beats ",
		Latitude:   37.7749,
		Longitude:  -122.4194,
		Visibility: "private",
		Tags:       "jazz, late night",
		StreamLink: "https://stream.example.com/bay",
		StreamName: "Bay Beats HQ",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	got, err := f.stations.Get(ctx, created.ID, f.x)
	require.NoError(t, err)
	assert.Equal(t, "Bay Beats", got.Name)
	assert.Equal(t, 37.7749, got.Latitude)
	assert.Equal(t, -122.4194, got.Longitude)
	assert.Equal(t, models.VisibilityPrivate, got.Visibility)
	assert.Equal(t, "jazz, late night", got.Tags)
	assert.Equal(t, "https://stream.example.com/bay", got.StreamLink)
	assert.Equal(t, f.x, got.OwnerID)
	assert.Equal(t, 0, got.Likes)
}

func TestStationService_CreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.stations.Create(ctx, "", models.StationInput{Name: "x", Latitude: 1, Longitude: 1})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.stations.Create(ctx, f.x, models.StationInput{Name: "x", Latitude: 91, Longitude: 1})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.stations.Create(ctx, f.x, models.StationInput{Name: "", Latitude: 1, Longitude: 1})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStationService_PrivateReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.privateSharedWithY(t)

	for name, requester := range map[string]string{"owner": f.x, "shared": f.y} {
		t.Run(name, func(t *testing.T) {
			got, err := f.stations.Get(ctx, station.ID, requester)
			require.NoError(t, err)
			assert.Equal(t, station.ID, got.ID)
		})
	}
	for name, requester := range map[string]string{"stranger": f.z, "anonymous": ""} {
		t.Run(name, func(t *testing.T) {
			_, err := f.stations.Get(ctx, station.ID, requester)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestStationService_GetMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.stations.Get(context.Background(), uuid.NewString(), f.x)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.stations.Get(context.Background(), "not-a-uuid", f.x)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStationService_PublicIgnoresSharingSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.privateSharedWithY(t)

	public := models.VisibilityPublic
	_, err := f.stations.Update(ctx, station.ID, f.x, models.StationPatch{Visibility: &public})
	require.NoError(t, err)

	got, err := f.stations.Get(ctx, station.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPublic, got.Visibility)

	_, err = f.stations.Share(ctx, station.ID, f.x, f.z)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStationService_OwnerOnlyMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.privateSharedWithY(t)
	name := "renamed"

	_, err := f.stations.Update(ctx, station.ID, f.y, models.StationPatch{Name: &name})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	err = f.stations.Delete(ctx, station.ID, f.z)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.stations.Share(ctx, station.ID, f.y, f.z)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.stations.Unshare(ctx, station.ID, f.y, f.y)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.stations.Update(ctx, station.ID, "", models.StationPatch{Name: &name})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	got, err := f.stations.Get(ctx, station.ID, f.x)
	require.NoError(t, err)
	assert.Equal(t, "hideout", got.Name)
	assert.Equal(t, []string{f.y}, got.SharedUserIDs)
}

func TestStationService_UpdateByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.create(t, f.x, "kexp", 37.7749, -122.4194, models.VisibilityPublic)

	name, likes := "KEXP Seattle", 12
	updated, err := f.stations.Update(ctx, station.ID, f.x, models.StationPatch{Name: &name, Likes: &likes})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, 12, updated.Likes)
	assert.True(t, updated.UpdatedAt.After(station.UpdatedAt))

	negative := -3
	_, err = f.stations.Update(ctx, station.ID, f.x, models.StationPatch{Likes: &negative})
	assert.ErrorIs(t, err, models.ErrValidation)

	got, err := f.stations.Get(ctx, station.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Likes)
}

func TestStationService_UpdateRadioSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.create(t, f.x, "kexp", 37.7749, -122.4194, models.VisibilityPublic)

	updated, err := f.stations.UpdateRadioSource(ctx, station.ID, f.x, models.RadioSource{
		StreamLink: "https://live.example.org/kexp.aac",
		StreamName: "KEXP AAC",
		Favicon:    "https://live.example.org/favicon.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://live.example.org/kexp.aac", updated.StreamLink)
	assert.Equal(t, "KEXP AAC", updated.StreamName)
	assert.Equal(t, "kexp", updated.Name)

	_, err = f.stations.UpdateRadioSource(ctx, station.ID, f.x, models.RadioSource{StreamLink: "nope"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStationService_DeleteInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.create(t, f.x, "gone", 37.7749, -122.4194, models.VisibilityPublic)

	_, err := f.stations.Get(ctx, station.ID, "")
	require.NoError(t, err)
	assert.True(t, f.redis.Exists("stations:station:"+station.ID))

	require.NoError(t, f.stations.Delete(ctx, station.ID, f.x))
	assert.False(t, f.redis.Exists("stations:station:"+station.ID))

	_, err = f.stations.Get(ctx, station.ID, f.x)
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = f.stations.Delete(ctx, station.ID, f.x)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStationService_UnshareRevokesCachedAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.privateSharedWithY(t)

	_, err := f.stations.Get(ctx, station.ID, f.y)
	require.NoError(t, err)

	updated, err := f.stations.Unshare(ctx, station.ID, f.x, f.y)
	require.NoError(t, err)
	assert.Empty(t, updated.SharedUserIDs)

	_, err = f.stations.Get(ctx, station.ID, f.y)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

// racingStore runs afterGet once, between the store read and the cache fill of a read-through.
type racingStore struct {
	*testutil.Store
	afterGet func()
}

func (s *racingStore) Get(ctx context.Context, id string) (*models.Station, error) {
	station, err := s.Store.Get(ctx, id)
	if hook := s.afterGet; hook != nil {
		s.afterGet = nil
		hook()
	}
	return station, err
}

func newRacingService(t *testing.T, f *fixture) (*StationService, *racingStore) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
	t.Cleanup(func() { client.Close() })
	store := &racingStore{Store: f.store}
	cache := redisstore.NewStationCache(client, time.Minute)
	return NewStationService(store, f.store.Users(), cache, zap.NewNop()), store
}

func TestStationService_ConcurrentUnshareDropsStaleFill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.privateSharedWithY(t)
	svc, store := newRacingService(t, f)

	store.afterGet = func() {
		_, err := svc.Unshare(ctx, station.ID, f.x, f.y)
		require.NoError(t, err)
	}
	_, err := svc.Get(ctx, station.ID, f.x)
	require.NoError(t, err)
	assert.False(t, f.redis.Exists("stations:station:"+station.ID))

	_, err = svc.Get(ctx, station.ID, f.y)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestStationService_ConcurrentMakePrivateDropsStaleFill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.create(t, f.x, "corner", 37.7749, -122.4194, models.VisibilityPublic)
	svc, store := newRacingService(t, f)

	private := models.VisibilityPrivate
	store.afterGet = func() {
		_, err := svc.Update(ctx, station.ID, f.x, models.StationPatch{Visibility: &private})
		require.NoError(t, err)
	}
	got, err := svc.Get(ctx, station.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPublic, got.Visibility)

	_, err = svc.Get(ctx, station.ID, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = svc.Get(ctx, station.ID, f.z)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestStationService_UnshareMalformedUserIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.privateSharedWithY(t)

	before, err := f.stations.Get(ctx, station.ID, f.x)
	require.NoError(t, err)

	got, err := f.stations.Unshare(ctx, station.ID, f.x, "not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, []string{f.y}, got.SharedUserIDs)
	assert.True(t, got.UpdatedAt.Equal(before.UpdatedAt))

	_, err = f.stations.Unshare(ctx, station.ID, f.y, "not-a-uuid")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestStationService_ShareRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.create(t, f.x, "secret", 37.7749, -122.4194, models.VisibilityPrivate)

	_, err := f.stations.Share(ctx, station.ID, f.x, f.x)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.stations.Share(ctx, station.ID, f.x, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.stations.Share(ctx, uuid.NewString(), f.x, f.y)
	assert.ErrorIs(t, err, models.ErrNotFound)

	first, err := f.stations.Share(ctx, station.ID, f.x, f.y)
	require.NoError(t, err)
	second, err := f.stations.Share(ctx, station.ID, f.x, f.y)
	require.NoError(t, err)
	assert.Equal(t, []string{f.y}, first.SharedUserIDs)
	assert.Equal(t, []string{f.y}, second.SharedUserIDs)
	assert.True(t, second.UpdatedAt.After(station.UpdatedAt))

	unshared, err := f.stations.Unshare(ctx, station.ID, f.x, f.z)
	require.NoError(t, err)
	assert.Equal(t, []string{f.y}, unshared.SharedUserIDs)
}

func TestStationService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pub1 := f.create(t, f.x, "pub-1", 10, 10, models.VisibilityPublic)
	pub2 := f.create(t, f.z, "pub-2", 10, 10, models.VisibilityPublic)
	hidden := f.privateSharedWithY(t)
	f.create(t, f.z, "z-private", 10, 10, models.VisibilityPrivate)

	public, err := f.stations.List(ctx, "", ListParams{})
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, pub2.ID, public[0].ID)
	assert.Equal(t, pub1.ID, public[1].ID)

	_, err = f.stations.List(ctx, "", ListParams{Visibility: "PRIVATE"})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	private, err := f.stations.List(ctx, f.y, ListParams{Visibility: "private"})
	require.NoError(t, err)
	require.Len(t, private, 1)
	assert.Equal(t, hidden.ID, private[0].ID)

	byOwner, err := f.stations.List(ctx, "", ListParams{OwnerID: f.x})
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, pub1.ID, byOwner[0].ID)

	paged, err := f.stations.List(ctx, "", ListParams{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, pub1.ID, paged[0].ID)

	_, err = f.stations.List(ctx, "", ListParams{Limit: 101})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.stations.List(ctx, "", ListParams{Visibility: "BOTH"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStationService_ListMineAndShared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shared := f.privateSharedWithY(t)
	f.create(t, f.x, "mine-public", 1, 1, models.VisibilityPublic)

	mine, err := f.stations.ListMine(ctx, f.x, 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	withY, err := f.stations.ListShared(ctx, f.y, 0, 0)
	require.NoError(t, err)
	require.Len(t, withY, 1)
	assert.Equal(t, shared.ID, withY[0].ID)

	_, err = f.stations.ListMine(ctx, "", 0, 0)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = f.stations.ListShared(ctx, "", 0, 0)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestStationService_Access(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.privateSharedWithY(t)

	access, err := f.stations.Access(ctx, station.ID, f.x)
	require.NoError(t, err)
	assert.Equal(t, "xavier", access.Owner.Username)
	require.Len(t, access.SharedUsers, 1)
	assert.Equal(t, "yara", access.SharedUsers[0].Username)

	_, err = f.stations.Access(ctx, station.ID, f.y)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestStationService_CacheFailOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	station := f.create(t, f.x, "resilient", 37.7749, -122.4194, models.VisibilityPublic)

	f.redis.Close()

	got, err := f.stations.Get(ctx, station.ID, "")
	require.NoError(t, err)
	assert.Equal(t, station.ID, got.ID)

	name := "still works"
	_, err = f.stations.Update(ctx, station.ID, f.x, models.StationPatch{Name: &name})
	require.NoError(t, err)
}
