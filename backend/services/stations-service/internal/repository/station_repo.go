package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	libdb "radiowalk/backend/libs/db"
	"radiowalk/backend/services/stations-service/internal/models"
)

// ErrStationNotFound represents missing station rows.
var ErrStationNotFound = errors.New("station not found")

// StationTx is the set of station writes that must share one transaction with the
// ownership check that precedes them.
type StationTx interface {
	GetForUpdate(ctx context.Context, id string) (*models.Station, error)
	Update(ctx context.Context, station *models.Station) error
	Delete(ctx context.Context, id string) error
	AddShare(ctx context.Context, stationID, userID string) error
	RemoveShare(ctx context.Context, stationID, userID string) error
	Touch(ctx context.Context, station *models.Station) error
	UserExists(ctx context.Context, userID string) (bool, error)
}

// StationRepository handles the stations and station_shares tables.
type StationRepository struct {
	db *sql.DB
	q  libdb.Querier
}

// NewStationRepository returns repository instance.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db, q: db}
}

const stationColumns = `
	s.id, s.name, s.latitude, s.longitude, s.type,
	COALESCE(s.tags, ''), COALESCE(s.stream_link, ''), COALESCE(s.stream_name, ''), COALESCE(s.favicon, ''),
	s.likes, s.owner_id, s.created_at, s.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (*models.Station, error) {
	var s models.Station
	var visibility string
	if err := row.Scan(
		&s.ID, &s.Name, &s.Latitude, &s.Longitude, &visibility,
		&s.Tags, &s.StreamLink, &s.StreamName, &s.Favicon,
		&s.Likes, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Visibility = models.Visibility(visibility)
	return &s, nil
}

// WithinTx runs fn against a transaction-bound copy of the repository.
func (r *StationRepository) WithinTx(ctx context.Context, fn func(tx StationTx) error) error {
	return libdb.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&StationRepository{db: r.db, q: tx})
	})
}

// Create inserts a station. The id is assigned by the caller.
func (r *StationRepository) Create(ctx context.Context, station *models.Station) error {
	const query = `
		INSERT INTO stations (id, name, latitude, longitude, type, tags, stream_link, stream_name, favicon, likes, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		station.ID, station.Name, station.Latitude, station.Longitude, string(station.Visibility),
		nullIfEmpty(station.Tags), nullIfEmpty(station.StreamLink), nullIfEmpty(station.StreamName),
		nullIfEmpty(station.Favicon), station.Likes, station.OwnerID,
	).Scan(&station.CreatedAt, &station.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert station: %w", err)
	}
	return nil
}

// Get fetches a station with its sharing set.
func (r *StationRepository) Get(ctx context.Context, id string) (*models.Station, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate fetches a station and locks its row until the transaction ends.
func (r *StationRepository) GetForUpdate(ctx context.Context, id string) (*models.Station, error) {
	return r.get(ctx, id, true)
}

func (r *StationRepository) get(ctx context.Context, id string, lock bool) (*models.Station, error) {
	query := `SELECT` + stationColumns + ` FROM stations s WHERE s.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	station, err := scanStation(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, fmt.Errorf("get station: %w", err)
	}

	shared, err := r.SharedUserIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	station.SharedUserIDs = shared
	return station, nil
}

// SharedUserIDs returns the sharing set of a station.
func (r *StationRepository) SharedUserIDs(ctx context.Context, stationID string) ([]string, error) {
	const query = `
		SELECT user_id
		FROM station_shares
		WHERE station_id = $1
		ORDER BY created_at, user_id
	`
	rows, err := r.q.QueryContext(ctx, query, stationID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Query returns stations matching every non-zero filter of q, newest first.
func (r *StationRepository) Query(ctx context.Context, q models.StationQuery) ([]models.Station, error) {
	query, args := buildStationQuery(q)
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	stations := []models.Station{}
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *s)
	}
	return stations, rows.Err()
}

func buildStationQuery(q models.StationQuery) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`SELECT` + stationColumns + ` FROM stations s WHERE TRUE`)
	if q.Visibility != "" {
		sb.WriteString(` AND s.type = ` + arg(string(q.Visibility)))
	}
	if q.Bounds != nil {
		sb.WriteString(` AND s.latitude BETWEEN ` + arg(q.Bounds.MinLat) + ` AND ` + arg(q.Bounds.MaxLat))
		sb.WriteString(` AND s.longitude BETWEEN ` + arg(q.Bounds.MinLon) + ` AND ` + arg(q.Bounds.MaxLon))
	}
	if q.AccessibleTo != "" {
		p := arg(q.AccessibleTo)
		sb.WriteString(` AND (s.owner_id = ` + p +
			` OR EXISTS (SELECT 1 FROM station_shares sh WHERE sh.station_id = s.id AND sh.user_id = ` + p + `))`)
	}
	if q.OwnerID != "" {
		sb.WriteString(` AND s.owner_id = ` + arg(q.OwnerID))
	}
	if q.SharedWith != "" {
		sb.WriteString(` AND EXISTS (SELECT 1 FROM station_shares sw WHERE sw.station_id = s.id AND sw.user_id = ` +
			arg(q.SharedWith) + `)`)
	}
	if tags := strings.TrimSpace(q.Tags); tags != "" {
		sb.WriteString(` AND s.tags ILIKE ` + arg("%"+escapeLike(tags)+"%"))
	}
	sb.WriteString(` ORDER BY s.created_at DESC, s.id`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ` + arg(q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(` OFFSET ` + arg(q.Offset))
	}
	return sb.String(), args
}

// Update writes every mutable column and refreshes updated_at.
func (r *StationRepository) Update(ctx context.Context, station *models.Station) error {
	const query = `
		UPDATE stations SET
			name = $2,
			latitude = $3,
			longitude = $4,
			type = $5,
			tags = $6,
			stream_link = $7,
			stream_name = $8,
			favicon = $9,
			likes = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		station.ID, station.Name, station.Latitude, station.Longitude, string(station.Visibility),
		nullIfEmpty(station.Tags), nullIfEmpty(station.StreamLink), nullIfEmpty(station.StreamName),
		nullIfEmpty(station.Favicon), station.Likes,
	).Scan(&station.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStationNotFound
		}
		return fmt.Errorf("update station: %w", err)
	}
	return nil
}

// Touch bumps updated_at after a sharing change.
func (r *StationRepository) Touch(ctx context.Context, station *models.Station) error {
	const query = `UPDATE stations SET updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	if err := r.q.QueryRowContext(ctx, query, station.ID).Scan(&station.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStationNotFound
		}
		return fmt.Errorf("touch station: %w", err)
	}
	return nil
}

// Delete removes a station; shares go with it through the foreign key cascade.
func (r *StationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM stations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete station: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrStationNotFound
	}
	return nil
}

// AddShare grants userID read access. Granting twice is a no-op.
func (r *StationRepository) AddShare(ctx context.Context, stationID, userID string) error {
	const query = `
		INSERT INTO station_shares (station_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (station_id, user_id) DO NOTHING
	`
	if _, err := r.q.ExecContext(ctx, query, stationID, userID); err != nil {
		return fmt.Errorf("add share: %w", err)
	}
	return nil
}

// RemoveShare revokes userID's access. Revoking a non-member is a no-op.
func (r *StationRepository) RemoveShare(ctx context.Context, stationID, userID string) error {
	const query = `DELETE FROM station_shares WHERE station_id = $1 AND user_id = $2`
	if _, err := r.q.ExecContext(ctx, query, stationID, userID); err != nil {
		return fmt.Errorf("remove share: %w", err)
	}
	return nil
}

// UserExists reports whether a user row exists.
func (r *StationRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`
	if err := r.q.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

// Stats aggregates station counts for a user.
func (r *StationRepository) Stats(ctx context.Context, userID string) (models.UserStats, error) {
	const ownedQuery = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE type = 'PUBLIC'),
			COUNT(*) FILTER (WHERE type = 'PRIVATE'),
			COALESCE(SUM(likes), 0)
		FROM stations
		WHERE owner_id = $1
	`
	const sharedQuery = `
		SELECT COUNT(*)
		FROM station_shares sh
		JOIN stations s ON s.id = sh.station_id
		WHERE sh.user_id = $1 AND s.type = 'PRIVATE'
	`
	var stats models.UserStats
	if err := r.q.QueryRowContext(ctx, ownedQuery, userID).Scan(
		&stats.TotalOwnedStations, &stats.PublicStations, &stats.PrivateStations, &stats.TotalLikes,
	); err != nil {
		return stats, fmt.Errorf("owned stats: %w", err)
	}
	if err := r.q.QueryRowContext(ctx, sharedQuery, userID).Scan(&stats.SharedStations); err != nil {
		return stats, fmt.Errorf("shared stats: %w", err)
	}
	return stats, nil
}

func nullIfEmpty(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(v string) string {
	return likeEscaper.Replace(v)
}
