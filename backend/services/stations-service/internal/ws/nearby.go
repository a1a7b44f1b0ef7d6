package ws

import (
	"context"
	"encoding/json"

	"radiowalk/backend/libs/geo"
	"radiowalk/backend/services/stations-service/internal/models"
	"radiowalk/backend/services/stations-service/internal/service"
)

// NearbyFinder runs proximity queries.
type NearbyFinder interface {
	FindNearby(ctx context.Context, q service.NearbyQuery) ([]models.NearbyStation, error)
}

type nearbyRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Mode      string   `json:"mode"`
	Tags      string   `json:"tags"`
}

type stationsReply struct {
	Stations []models.NearbyStation `json:"stations"`
}

type errorReply struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NearbyProcessor answers position frames with the stations around them.
type NearbyProcessor struct {
	finder NearbyFinder
}

// NewNearbyProcessor returns processor.
func NewNearbyProcessor(finder NearbyFinder) *NearbyProcessor {
	return &NearbyProcessor{finder: finder}
}

// Process decodes a position frame and runs the query for userID. Query failures become error
// replies; only encoding failures are returned.
func (p *NearbyProcessor) Process(ctx context.Context, userID string, raw []byte) ([]byte, error) {
	stations, err := p.find(ctx, userID, raw)
	if err != nil {
		code := models.CodeOf(err)
		message := err.Error()
		if code == "INTERNAL_ERROR" {
			message = "internal server error"
		}
		return json.Marshal(errorReply{Error: message, Code: code})
	}
	if stations == nil {
		stations = []models.NearbyStation{}
	}
	return json.Marshal(stationsReply{Stations: stations})
}

func (p *NearbyProcessor) find(ctx context.Context, userID string, raw []byte) ([]models.NearbyStation, error) {
	var req nearbyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, models.NewValidationError("invalid JSON frame")
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, models.NewValidationError("latitude and longitude are required")
	}
	if req.Mode == "" {
		req.Mode = models.ModePublic.String()
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	return p.finder.FindNearby(ctx, service.NearbyQuery{
		Origin:      geo.Point{Lat: *req.Latitude, Lon: *req.Longitude},
		Mode:        mode,
		RequesterID: userID,
		Tags:        req.Tags,
	})
}
