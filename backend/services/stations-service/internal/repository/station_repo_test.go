package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiowalk/backend/libs/geo"
	"radiowalk/backend/services/stations-service/internal/models"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var stationRowColumns = []string{
	"id", "name", "latitude", "longitude", "type", "tags", "stream_link", "stream_name", "favicon",
	"likes", "owner_id", "created_at", "updated_at",
}

func stationRow(id, visibility, owner string) *sqlmock.Rows {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(stationRowColumns).
		AddRow(id, "Mission FM", 37.7849, -122.4194, visibility, "indie", "https://s.example/live", "Live", "", 3, owner, now, now)
}

func TestStationRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStationRepository(db)

	now := time.Now().UTC()
	station := &models.Station{
		ID: "s-1", Name: "Mission FM", Latitude: 37.78, Longitude: -122.41,
		Visibility: models.VisibilityPrivate, OwnerID: "u-1",
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO stations")).
		WithArgs("s-1", "Mission FM", 37.78, -122.41, "PRIVATE", nil, nil, nil, nil, 0, "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, repo.Create(context.Background(), station))
	assert.Equal(t, now, station.CreatedAt)
}

func TestStationRepository_GetIncludesShares(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM stations s WHERE s.id = $1")).
		WithArgs("s-1").
		WillReturnRows(stationRow("s-1", "PRIVATE", "u-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM station_shares")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-2").AddRow("u-3"))

	station, err := repo.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPrivate, station.Visibility)
	assert.Equal(t, []string{"u-2", "u-3"}, station.SharedUserIDs)
	assert.Equal(t, "indie", station.Tags)
}

func TestStationRepository_GetNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM stations s WHERE s.id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestStationRepository_WithinTxLocksRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.id = $1 FOR UPDATE")).
		WithArgs("s-1").
		WillReturnRows(stationRow("s-1", "PRIVATE", "u-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM station_shares")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO station_shares")).
		WithArgs("s-1", "u-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(tx StationTx) error {
		station, err := tx.GetForUpdate(context.Background(), "s-1")
		if err != nil {
			return err
		}
		return tx.AddShare(context.Background(), station.ID, "u-2")
	})
	require.NoError(t, err)
}

func TestStationRepository_WithinTxRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("s-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx StationTx) error {
		_, err := tx.GetForUpdate(context.Background(), "s-1")
		return err
	})
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestStationRepository_DeleteMissing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM stations WHERE id = $1")).
		WithArgs("s-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "s-9"), ErrStationNotFound)
}

func TestStationRepository_QueryPrivateInBounds(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStationRepository(db)

	bounds := geo.Bounds{MinLat: 37.7, MaxLat: 37.8, MinLon: -122.5, MaxLon: -122.4}
	mock.ExpectQuery(regexp.QuoteMeta(
		"s.type = $1 AND s.latitude BETWEEN $2 AND $3 AND s.longitude BETWEEN $4 AND $5 AND (s.owner_id = $6 OR EXISTS",
	)).
		WithArgs("PRIVATE", 37.7, 37.8, -122.5, -122.4, "u-1", `%50\%\_off%`).
		WillReturnRows(stationRow("s-1", "PRIVATE", "u-1"))

	stations, err := repo.Query(context.Background(), models.StationQuery{
		Visibility:   models.VisibilityPrivate,
		Bounds:       &bounds,
		AccessibleTo: "u-1",
		Tags:         "50%_off",
	})
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "s-1", stations[0].ID)
}

func TestBuildStationQuery_Paging(t *testing.T) {
	query, args := buildStationQuery(models.StationQuery{OwnerID: "u-1", Limit: 20, Offset: 40})
	assert.Contains(t, query, "s.owner_id = $1")
	assert.Contains(t, query, "ORDER BY s.created_at DESC, s.id LIMIT $2 OFFSET $3")
	assert.Equal(t, []any{"u-1", 20, 40}, args)

	query, args = buildStationQuery(models.StationQuery{})
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}

func TestStationRepository_Stats(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE type = 'PUBLIC')")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "public", "private", "likes"}).AddRow(3, 2, 1, 17))
	mock.ExpectQuery(regexp.QuoteMeta("FROM station_shares sh")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	stats, err := repo.Stats(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{
		TotalOwnedStations: 3, PublicStations: 2, PrivateStations: 1, SharedStations: 4, TotalLikes: 17,
	}, stats)
}
