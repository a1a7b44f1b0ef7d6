package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/models"
	"radiowalk/backend/services/stations-service/internal/service"
)

// NewSignInHandler handles POST /internal/auth/sign-in. The caller is the OAuth front end,
// which has already verified the email with the identity provider.
func NewSignInHandler(users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	type response struct {
		Token     string      `json:"token"`
		TokenType string      `json:"token_type"`
		User      models.User `json:"user"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		user, token, err := users.SignIn(r.Context(), req.Email, req.Name)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, response{Token: token, TokenType: "Bearer", User: *user})
	}
}
