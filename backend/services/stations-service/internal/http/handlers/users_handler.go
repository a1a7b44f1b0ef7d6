package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/http/middleware"
	"radiowalk/backend/services/stations-service/internal/models"
	"radiowalk/backend/services/stations-service/internal/service"
)

// UsersHandler serves the /users endpoints.
type UsersHandler struct {
	users  *service.UserService
	logger *zap.Logger
}

// NewUsersHandler returns handler.
func NewUsersHandler(users *service.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{users: users, logger: logger}
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.Profile(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateMe handles PATCH /users/me.
func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), middleware.UserIDFromContext(r.Context()), patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Stats handles GET /users/me/stats.
func (h *UsersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.Stats(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Search handles GET /users/search?q=&limit=.
func (h *UsersHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	users, err := h.users.Search(r.Context(), middleware.UserIDFromContext(r.Context()), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.UserSummary{"users": users})
}

// UsernameAvailable handles GET /users/username-available?username=.
func (h *UsersHandler) UsernameAvailable(w http.ResponseWriter, r *http.Request) {
	available, err := h.users.UsernameAvailable(r.Context(), middleware.UserIDFromContext(r.Context()), r.URL.Query().Get("username"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// Public handles GET /users/{id}.
func (h *UsersHandler) Public(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.PublicUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
