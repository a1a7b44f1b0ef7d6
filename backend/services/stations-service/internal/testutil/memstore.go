// Package testutil provides in-memory stand-ins for the Postgres repositories.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"radiowalk/backend/services/stations-service/internal/models"
	"radiowalk/backend/services/stations-service/internal/repository"
)

// Store is an in-memory implementation of the station and user repositories. It honours the
// same filters, ordering and sentinel errors as the SQL code.
type Store struct {
	mu       sync.Mutex
	stations map[string]*models.Station
	shares   map[string][]string
	users    map[string]*models.User
	clock    time.Time
	seq      int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		stations: make(map[string]*models.Station),
		shares:   make(map[string][]string),
		users:    make(map[string]*models.User),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so created_at ordering is deterministic.
func (s *Store) tick() time.Time {
	s.seq++
	return s.clock.Add(time.Duration(s.seq) * time.Second)
}

// AddUser inserts a user directly.
func (s *Store) AddUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.tick()
		u.UpdatedAt = u.CreatedAt
	}
	s.users[u.ID] = &u
	cp := u
	return &cp
}

func (s *Store) copyStation(st *models.Station) *models.Station {
	cp := *st
	cp.SharedUserIDs = append([]string{}, s.shares[st.ID]...)
	return &cp
}

// Create implements the station repository.
func (s *Store) Create(_ context.Context, station *models.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	station.CreatedAt = s.tick()
	station.UpdatedAt = station.CreatedAt
	cp := *station
	cp.SharedUserIDs = nil
	s.stations[station.ID] = &cp
	return nil
}

// Get implements the station repository.
func (s *Store) Get(_ context.Context, id string) (*models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[id]
	if !ok {
		return nil, repository.ErrStationNotFound
	}
	return s.copyStation(st), nil
}

// Query implements the station repository.
func (s *Store) Query(_ context.Context, q models.StationQuery) ([]models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Station{}
	for _, st := range s.stations {
		if q.Visibility != "" && st.Visibility != q.Visibility {
			continue
		}
		if q.Bounds != nil && !q.Bounds.Contains(st.Point()) {
			continue
		}
		if q.AccessibleTo != "" && st.OwnerID != q.AccessibleTo && !contains(s.shares[st.ID], q.AccessibleTo) {
			continue
		}
		if q.OwnerID != "" && st.OwnerID != q.OwnerID {
			continue
		}
		if q.SharedWith != "" && !contains(s.shares[st.ID], q.SharedWith) {
			continue
		}
		if q.Tags != "" && !strings.Contains(strings.ToLower(st.Tags), strings.ToLower(strings.TrimSpace(q.Tags))) {
			continue
		}
		cp := *st
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []models.Station{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Stats implements the station repository.
func (s *Store) Stats(_ context.Context, userID string) (models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.UserStats
	for _, st := range s.stations {
		if st.OwnerID == userID {
			stats.TotalOwnedStations++
			stats.TotalLikes += st.Likes
			if st.Visibility == models.VisibilityPublic {
				stats.PublicStations++
			} else {
				stats.PrivateStations++
			}
		}
		if st.Visibility == models.VisibilityPrivate && contains(s.shares[st.ID], userID) {
			stats.SharedStations++
		}
	}
	return stats, nil
}

// WithinTx runs fn under the store lock. A failing fn leaves the store unchanged.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.StationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{
		store:    s,
		stations: make(map[string]*models.Station, len(s.stations)),
		shares:   make(map[string][]string, len(s.shares)),
	}
	for id, st := range s.stations {
		cp := *st
		tx.stations[id] = &cp
	}
	for id, users := range s.shares {
		tx.shares[id] = append([]string{}, users...)
	}

	if err := fn(tx); err != nil {
		return err
	}
	s.stations = tx.stations
	s.shares = tx.shares
	return nil
}

type storeTx struct {
	store    *Store
	stations map[string]*models.Station
	shares   map[string][]string
}

func (t *storeTx) GetForUpdate(_ context.Context, id string) (*models.Station, error) {
	st, ok := t.stations[id]
	if !ok {
		return nil, repository.ErrStationNotFound
	}
	cp := *st
	cp.SharedUserIDs = append([]string{}, t.shares[id]...)
	return &cp, nil
}

func (t *storeTx) Update(_ context.Context, station *models.Station) error {
	existing, ok := t.stations[station.ID]
	if !ok {
		return repository.ErrStationNotFound
	}
	station.UpdatedAt = t.store.tick()
	cp := *station
	cp.SharedUserIDs = nil
	cp.OwnerID = existing.OwnerID
	cp.CreatedAt = existing.CreatedAt
	t.stations[station.ID] = &cp
	return nil
}

func (t *storeTx) Delete(_ context.Context, id string) error {
	if _, ok := t.stations[id]; !ok {
		return repository.ErrStationNotFound
	}
	delete(t.stations, id)
	delete(t.shares, id)
	return nil
}

func (t *storeTx) AddShare(_ context.Context, stationID, userID string) error {
	if err := checkUUID(userID); err != nil {
		return err
	}
	if !contains(t.shares[stationID], userID) {
		t.shares[stationID] = append(t.shares[stationID], userID)
	}
	return nil
}

func (t *storeTx) RemoveShare(_ context.Context, stationID, userID string) error {
	if err := checkUUID(userID); err != nil {
		return err
	}
	users := t.shares[stationID]
	for i, id := range users {
		if id == userID {
			t.shares[stationID] = append(users[:i:i], users[i+1:]...)
			break
		}
	}
	return nil
}

func (t *storeTx) Touch(_ context.Context, station *models.Station) error {
	st, ok := t.stations[station.ID]
	if !ok {
		return repository.ErrStationNotFound
	}
	st.UpdatedAt = t.store.tick()
	station.UpdatedAt = st.UpdatedAt
	return nil
}

func (t *storeTx) UserExists(_ context.Context, userID string) (bool, error) {
	_, ok := t.store.users[userID]
	return ok, nil
}

// checkUUID fails the way a uuid column does on malformed input.
func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid input syntax for type uuid: %q", id)
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
