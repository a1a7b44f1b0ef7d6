package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"radiowalk/backend/libs/geo"
	"radiowalk/backend/services/stations-service/internal/metrics"
	"radiowalk/backend/services/stations-service/internal/models"
)

// NearbyRadiusKm is the fixed search radius of FindNearby.
const NearbyRadiusKm = 5.0

// CandidateSource returns the stations of one visibility inside a bounding box.
type CandidateSource interface {
	QueryByTypeAndBounds(ctx context.Context, bounds geo.Bounds, visibility models.Visibility, requesterID, tags string) ([]models.Station, error)
}

// NearbyQuery describes one proximity search.
type NearbyQuery struct {
	Origin      geo.Point
	Mode        models.Mode
	RequesterID string
	Tags        string
}

// ProximityService finds stations around a point.
type ProximityService struct {
	source   CandidateSource
	radiusKm float64
	logger   *zap.Logger
}

// NewProximityService returns a service using the fixed nearby radius.
func NewProximityService(source CandidateSource, logger *zap.Logger) *ProximityService {
	return &ProximityService{source: source, radiusKm: NearbyRadiusKm, logger: logger}
}

// FindNearby returns the stations within the search radius of q.Origin that the requester may
// read, nearest first. The bounding box only narrows the candidates; the cut is made on the
// great-circle distance and a station exactly on the radius is kept.
func (p *ProximityService) FindNearby(ctx context.Context, q NearbyQuery) ([]models.NearbyStation, error) {
	result, err := p.findNearby(ctx, q)
	outcome := "ok"
	if err != nil {
		outcome = models.CodeOf(err)
	}
	metrics.NearbyQueries.WithLabelValues(q.Mode.String(), outcome).Inc()
	return result, err
}

func (p *ProximityService) findNearby(ctx context.Context, q NearbyQuery) ([]models.NearbyStation, error) {
	if !q.Origin.Valid() {
		return nil, models.NewValidationError("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	visibilities := q.Mode.Visibilities()
	if len(visibilities) == 0 {
		return nil, models.NewValidationError("mode must be PUBLIC, PRIVATE or BOTH")
	}

	bounds := geo.BoundingBox(q.Origin, p.radiusKm)
	var candidates []models.Station
	for _, visibility := range visibilities {
		stations, err := p.source.QueryByTypeAndBounds(ctx, bounds, visibility, q.RequesterID, q.Tags)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, stations...)
	}

	nearby := withinRadius(q.Origin, candidates, p.radiusKm)
	metrics.NearbyResults.Observe(float64(len(nearby)))
	metrics.NearbyCandidatesDropped.Add(float64(len(candidates) - len(nearby)))

	p.logger.Debug("nearby query",
		zap.Stringer("mode", q.Mode),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(nearby)))
	return nearby, nil
}

// withinRadius annotates candidates with their distance from origin, drops those beyond
// radiusKm and sorts the rest by ascending distance. Equal distances keep candidate order.
func withinRadius(origin geo.Point, candidates []models.Station, radiusKm float64) []models.NearbyStation {
	nearby := make([]models.NearbyStation, 0, len(candidates))
	for _, station := range candidates {
		distance := geo.DistanceKm(origin, station.Point())
		if distance > radiusKm {
			continue
		}
		nearby = append(nearby, models.NearbyStation{Station: station, DistanceKm: distance})
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby
}
