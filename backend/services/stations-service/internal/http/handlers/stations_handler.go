package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"radiowalk/backend/libs/geo"
	"radiowalk/backend/services/stations-service/internal/http/middleware"
	"radiowalk/backend/services/stations-service/internal/models"
	"radiowalk/backend/services/stations-service/internal/service"
)

// StationsHandler serves the /stations endpoints.
type StationsHandler struct {
	stations  *service.StationService
	proximity *service.ProximityService
	streams   *service.StreamValidator
	logger    *zap.Logger
}

// NewStationsHandler returns handler.
func NewStationsHandler(stations *service.StationService, proximity *service.ProximityService, streams *service.StreamValidator, logger *zap.Logger) *StationsHandler {
	return &StationsHandler{stations: stations, proximity: proximity, streams: streams, logger: logger}
}

func (h *StationsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, h.logger, err)
}

type stationsResponse struct {
	Stations []models.Station `json:"stations"`
}

type nearbyResponse struct {
	Stations []models.NearbyStation `json:"stations"`
}

// Create handles POST /stations.
func (h *StationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.StationInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	station, err := h.stations.Create(r.Context(), middleware.UserIDFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, station)
}

// Get handles GET /stations/{id}.
func (h *StationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	station, err := h.stations.Get(r.Context(), r.PathValue("id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

// List handles GET /stations?type=&ownerId=&tags=&limit=&offset=.
func (h *StationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	stations, err := h.stations.List(r.Context(), middleware.UserIDFromContext(r.Context()), service.ListParams{
		Visibility: q.Get("type"),
		OwnerID:    q.Get("ownerId"),
		Tags:       q.Get("tags"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stationsResponse{Stations: stations})
}

// Mine handles GET /stations/mine.
func (h *StationsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stations, err := h.stations.ListMine(r.Context(), middleware.UserIDFromContext(r.Context()), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stationsResponse{Stations: stations})
}

// Shared handles GET /stations/shared.
func (h *StationsHandler) Shared(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stations, err := h.stations.ListShared(r.Context(), middleware.UserIDFromContext(r.Context()), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stationsResponse{Stations: stations})
}

// Nearby handles GET /stations/nearby?latitude=&longitude=&mode=&tags=.
func (h *StationsHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "latitude")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	lon, err := queryFloat(r, "longitude")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rawMode := r.URL.Query().Get("mode")
	if rawMode == "" {
		rawMode = models.ModePublic.String()
	}
	mode, err := models.ParseMode(rawMode)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	stations, err := h.proximity.FindNearby(r.Context(), service.NearbyQuery{
		Origin:      geo.Point{Lat: lat, Lon: lon},
		Mode:        mode,
		RequesterID: middleware.UserIDFromContext(r.Context()),
		Tags:        r.URL.Query().Get("tags"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nearbyResponse{Stations: stations})
}

// Update handles PATCH /stations/{id}.
func (h *StationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.StationPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	station, err := h.stations.Update(r.Context(), r.PathValue("id"), middleware.UserIDFromContext(r.Context()), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

// UpdateRadioSource handles PUT /stations/{id}/radio-source.
func (h *StationsHandler) UpdateRadioSource(w http.ResponseWriter, r *http.Request) {
	var src models.RadioSource
	if err := decodeJSON(r, &src); err != nil {
		h.fail(w, r, err)
		return
	}
	station, err := h.stations.UpdateRadioSource(r.Context(), r.PathValue("id"), middleware.UserIDFromContext(r.Context()), src)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

// Delete handles DELETE /stations/{id}.
func (h *StationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.stations.Delete(r.Context(), r.PathValue("id"), middleware.UserIDFromContext(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Share handles POST /stations/{id}/shares with body {"userId": "..."}.
func (h *StationsHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	station, err := h.stations.Share(r.Context(), r.PathValue("id"), middleware.UserIDFromContext(r.Context()), req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

// Unshare handles DELETE /stations/{id}/shares/{userId}.
func (h *StationsHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	station, err := h.stations.Unshare(r.Context(), r.PathValue("id"), middleware.UserIDFromContext(r.Context()), r.PathValue("userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

// Access handles GET /stations/{id}/users.
func (h *StationsHandler) Access(w http.ResponseWriter, r *http.Request) {
	access, err := h.stations.Access(r.Context(), r.PathValue("id"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

// ValidateStream handles GET /stations/validate-stream?url=.
func (h *StationsHandler) ValidateStream(w http.ResponseWriter, r *http.Request) {
	check, err := h.streams.Validate(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
