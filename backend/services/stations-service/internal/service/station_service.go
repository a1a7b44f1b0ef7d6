package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"radiowalk/backend/libs/geo"
	"radiowalk/backend/services/stations-service/internal/metrics"
	"radiowalk/backend/services/stations-service/internal/models"
	"radiowalk/backend/services/stations-service/internal/repository"
)

// StationStore persists stations and their sharing sets.
type StationStore interface {
	Create(ctx context.Context, station *models.Station) error
	Get(ctx context.Context, id string) (*models.Station, error)
	Query(ctx context.Context, q models.StationQuery) ([]models.Station, error)
	Stats(ctx context.Context, userID string) (models.UserStats, error)
	WithinTx(ctx context.Context, fn func(tx repository.StationTx) error) error
}

// StationCache caches single station records. Fill must refuse to write when the station was
// invalidated after the version passed to it was read.
type StationCache interface {
	Get(ctx context.Context, id string) (*models.Station, error)
	Version(ctx context.Context, id string) (int64, error)
	Fill(ctx context.Context, station *models.Station, version int64) (bool, error)
	Invalidate(ctx context.Context, id string) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*models.Station, error)       { return nil, nil }
func (noopCache) Version(context.Context, string) (int64, error)             { return 0, nil }
func (noopCache) Fill(context.Context, *models.Station, int64) (bool, error) { return false, nil }
func (noopCache) Invalidate(context.Context, string) error                   { return nil }

// StationService applies the ownership and sharing rules on top of the station store.
// Every method takes the requester explicitly; an empty requester ID is an anonymous caller.
type StationService struct {
	stations StationStore
	users    UserStore
	cache    StationCache
	logger   *zap.Logger
}

// NewStationService wires the service. A nil cache disables caching.
func NewStationService(stations StationStore, users UserStore, cache StationCache, logger *zap.Logger) *StationService {
	if cache == nil {
		cache = noopCache{}
	}
	return &StationService{stations: stations, users: users, cache: cache, logger: logger}
}

// ListParams filters listStations.
type ListParams struct {
	Visibility string
	OwnerID    string
	Tags       string
	Limit      int
	Offset     int
}

// Create stores a new station owned by the requester.
func (s *StationService) Create(ctx context.Context, requesterID string, in models.StationInput) (*models.Station, error) {
	if requesterID == "" {
		return nil, models.NewAuthorizationError("sign in to create stations")
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	station := in.Station(requesterID)
	station.ID = uuid.NewString()
	station.SharedUserIDs = []string{}
	if err := s.stations.Create(ctx, station); err != nil {
		return nil, fmt.Errorf("create station: %w", err)
	}

	s.logger.Info("station created",
		zap.String("station_id", station.ID),
		zap.String("owner_id", requesterID),
		zap.String("type", string(station.Visibility)))
	return station, nil
}

// Get returns a station the requester may read.
func (s *StationService) Get(ctx context.Context, id, requesterID string) (*models.Station, error) {
	station, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !station.CanRead(requesterID) {
		return nil, models.NewAuthorizationError("no access to station %q", id)
	}
	return station, nil
}

// load reads through the cache. Cache failures fall back to the store. The cache version is
// read before the store so a mutation committed in between makes the fill a no-op.
func (s *StationService) load(ctx context.Context, id string) (*models.Station, error) {
	if !validID(id) {
		return nil, models.NewNotFoundError("station", id)
	}

	fill := false
	var version int64
	cached, err := s.cache.Get(ctx, id)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("station cache read failed", zap.String("station_id", id), zap.Error(err))
	case cached != nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		if version, err = s.cache.Version(ctx, id); err != nil {
			s.logger.Warn("station cache version read failed", zap.String("station_id", id), zap.Error(err))
		} else {
			fill = true
		}
	}

	station, err := s.stations.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, id)
	}
	if fill {
		written, err := s.cache.Fill(ctx, station, version)
		if err != nil {
			s.logger.Warn("station cache write failed", zap.String("station_id", id), zap.Error(err))
		} else if !written {
			s.logger.Debug("station cache fill skipped, invalidated meanwhile", zap.String("station_id", id))
		}
	}
	return station, nil
}

// List pages through stations of one visibility, newest first.
func (s *StationService) List(ctx context.Context, requesterID string, params ListParams) ([]models.Station, error) {
	page, err := models.NewPage(params.Limit, params.Offset)
	if err != nil {
		return nil, err
	}

	visibility := models.VisibilityPublic
	if strings.TrimSpace(params.Visibility) != "" {
		if visibility, err = models.ParseVisibility(params.Visibility); err != nil {
			return nil, err
		}
	}

	q := models.StationQuery{
		Visibility: visibility,
		OwnerID:    strings.TrimSpace(params.OwnerID),
		Tags:       params.Tags,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if visibility == models.VisibilityPrivate {
		if requesterID == "" {
			return nil, models.NewAuthorizationError("sign in to list private stations")
		}
		q.AccessibleTo = requesterID
	}
	if q.OwnerID != "" && !validID(q.OwnerID) {
		return []models.Station{}, nil
	}
	return s.query(ctx, q)
}

// ListMine pages through the requester's own stations of both visibilities.
func (s *StationService) ListMine(ctx context.Context, requesterID string, limit, offset int) ([]models.Station, error) {
	if requesterID == "" {
		return nil, models.NewAuthorizationError("sign in to list your stations")
	}
	page, err := models.NewPage(limit, offset)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, models.StationQuery{OwnerID: requesterID, Limit: page.Limit, Offset: page.Offset})
}

// ListShared pages through private stations other users shared with the requester.
func (s *StationService) ListShared(ctx context.Context, requesterID string, limit, offset int) ([]models.Station, error) {
	if requesterID == "" {
		return nil, models.NewAuthorizationError("sign in to list shared stations")
	}
	page, err := models.NewPage(limit, offset)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, models.StationQuery{
		Visibility: models.VisibilityPrivate,
		SharedWith: requesterID,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
}

// QueryByTypeAndBounds returns the stations of one visibility inside bounds that the requester
// may read. PRIVATE requires a requester and is restricted to owned or shared stations.
func (s *StationService) QueryByTypeAndBounds(ctx context.Context, bounds geo.Bounds, visibility models.Visibility, requesterID, tags string) ([]models.Station, error) {
	q := models.StationQuery{Visibility: visibility, Bounds: &bounds, Tags: tags}
	switch visibility {
	case models.VisibilityPublic:
	case models.VisibilityPrivate:
		if requesterID == "" {
			return nil, models.NewAuthorizationError("sign in to search private stations")
		}
		q.AccessibleTo = requesterID
	default:
		return nil, models.NewValidationError("unknown station type %q", visibility)
	}
	return s.query(ctx, q)
}

func (s *StationService) query(ctx context.Context, q models.StationQuery) ([]models.Station, error) {
	stations, err := s.stations.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	return stations, nil
}

// Update applies a partial update. Only the owner may update.
func (s *StationService) Update(ctx context.Context, id, requesterID string, patch models.StationPatch) (*models.Station, error) {
	station, err := s.mutate(ctx, id, requesterID, "update", func(tx repository.StationTx, station *models.Station) error {
		if err := patch.Apply(station); err != nil {
			return err
		}
		return tx.Update(ctx, station)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("station updated", zap.String("station_id", id), zap.String("owner_id", requesterID))
	return station, nil
}

// UpdateRadioSource replaces the stream fields of a station.
func (s *StationService) UpdateRadioSource(ctx context.Context, id, requesterID string, src models.RadioSource) (*models.Station, error) {
	patch, err := src.Patch()
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, id, requesterID, *patch)
}

// Delete removes a station. Only the owner may delete.
func (s *StationService) Delete(ctx context.Context, id, requesterID string) error {
	_, err := s.mutate(ctx, id, requesterID, "delete", func(tx repository.StationTx, station *models.Station) error {
		return tx.Delete(ctx, station.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("station deleted", zap.String("station_id", id), zap.String("owner_id", requesterID))
	return nil
}

// Share grants targetUserID read access to a private station.
func (s *StationService) Share(ctx context.Context, stationID, ownerID, targetUserID string) (*models.Station, error) {
	station, err := s.mutate(ctx, stationID, ownerID, "share", func(tx repository.StationTx, station *models.Station) error {
		if station.Visibility != models.VisibilityPrivate {
			return models.NewValidationError("only private stations can be shared")
		}
		if targetUserID == station.OwnerID {
			return models.NewValidationError("a station cannot be shared with its owner")
		}
		if !validID(targetUserID) {
			return models.NewNotFoundError("user", targetUserID)
		}
		exists, err := tx.UserExists(ctx, targetUserID)
		if err != nil {
			return err
		}
		if !exists {
			return models.NewNotFoundError("user", targetUserID)
		}
		if err := tx.AddShare(ctx, station.ID, targetUserID); err != nil {
			return err
		}
		if !station.SharedWith(targetUserID) {
			station.SharedUserIDs = append(station.SharedUserIDs, targetUserID)
		}
		return tx.Touch(ctx, station)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("station shared",
		zap.String("station_id", stationID),
		zap.String("owner_id", ownerID),
		zap.String("user_id", targetUserID))
	return station, nil
}

// Unshare revokes targetUserID's access. Revoking a user outside the set succeeds; a malformed
// user id cannot be in the set and returns the station untouched.
func (s *StationService) Unshare(ctx context.Context, stationID, ownerID, targetUserID string) (*models.Station, error) {
	station, err := s.mutate(ctx, stationID, ownerID, "unshare", func(tx repository.StationTx, station *models.Station) error {
		if !validID(targetUserID) {
			return nil
		}
		if err := tx.RemoveShare(ctx, station.ID, targetUserID); err != nil {
			return err
		}
		kept := station.SharedUserIDs[:0]
		for _, id := range station.SharedUserIDs {
			if id != targetUserID {
				kept = append(kept, id)
			}
		}
		station.SharedUserIDs = kept
		return tx.Touch(ctx, station)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("station unshared",
		zap.String("station_id", stationID),
		zap.String("owner_id", ownerID),
		zap.String("user_id", targetUserID))
	return station, nil
}

// Access lists the owner and the sharing set of a station. Owner only.
func (s *StationService) Access(ctx context.Context, stationID, requesterID string) (*models.StationAccess, error) {
	if requesterID == "" {
		return nil, models.NewAuthorizationError("sign in to view station access")
	}
	station, err := s.load(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if !station.IsOwner(requesterID) {
		return nil, models.NewAuthorizationError("only the owner can view who has access")
	}

	owner, err := s.users.GetByID(ctx, station.OwnerID)
	if err != nil {
		return nil, mapStoreError(err, station.OwnerID)
	}
	shared, err := s.users.SharedWithStation(ctx, station.ID)
	if err != nil {
		return nil, fmt.Errorf("station access: %w", err)
	}
	return &models.StationAccess{
		StationID:   station.ID,
		Name:        station.Name,
		Visibility:  station.Visibility,
		Owner:       owner.Summary(),
		SharedUsers: shared,
	}, nil
}

// mutate runs fn inside a transaction after locking the station row and checking ownership,
// then drops the cached copy.
func (s *StationService) mutate(ctx context.Context, id, requesterID, action string, fn func(tx repository.StationTx, station *models.Station) error) (*models.Station, error) {
	if requesterID == "" {
		return nil, models.NewAuthorizationError("sign in to %s stations", action)
	}
	if !validID(id) {
		return nil, models.NewNotFoundError("station", id)
	}

	var result *models.Station
	err := s.stations.WithinTx(ctx, func(tx repository.StationTx) error {
		station, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !station.IsOwner(requesterID) {
			return models.NewAuthorizationError("only the owner can %s this station", action)
		}
		if err := fn(tx, station); err != nil {
			return err
		}
		result = station
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err, id)
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("station cache invalidation failed", zap.String("station_id", id), zap.Error(err))
	}
	return result, nil
}

func mapStoreError(err error, id string) error {
	var domainErr *models.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repository.ErrStationNotFound):
		return models.NewNotFoundError("station", id)
	case errors.Is(err, repository.ErrUserNotFound):
		return models.NewNotFoundError("user", id)
	default:
		return fmt.Errorf("station store: %w", err)
	}
}

// validID reports whether id can name a stored row. Anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
