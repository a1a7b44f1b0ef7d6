package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/http/middleware"
	"radiowalk/backend/services/stations-service/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeServiceError maps domain errors to HTTP. Authorization failures are 401 for anonymous
// callers and 403 for signed-in ones; anything unrecognised is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	code := models.CodeOf(err)
	var domainErr *models.Error
	message := "internal server error"
	if errors.As(err, &domainErr) {
		message = domainErr.Error()
	}

	switch {
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, code, message)
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, code, message)
	case errors.Is(err, models.ErrUnauthorized):
		status := http.StatusForbidden
		if middleware.UserIDFromContext(r.Context()) == "" {
			status = http.StatusUnauthorized
		}
		writeError(w, status, code, message)
	default:
		logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, code, message)
	}
}

func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return models.NewValidationError("invalid JSON body")
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError("%s must be an integer", key)
	}
	return v, nil
}

func queryFloat(r *http.Request, key string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, models.NewValidationError("%s is required", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, models.NewValidationError("%s must be a number", key)
	}
	return v, nil
}

func paging(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
