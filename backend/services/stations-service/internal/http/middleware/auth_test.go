package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiowalk/backend/services/stations-service/internal/service"
)

func echoUser(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
}

func TestAuthenticate_IgnoresQueryToken(t *testing.T) {
	tokens := service.NewTokenService("mw-secret", time.Hour)
	token, err := tokens.GenerateToken("user-1")
	require.NoError(t, err)

	h := Authenticate(tokens)(http.HandlerFunc(echoUser))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stations?access_token="+token, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestQueryToken(t *testing.T) {
	tokens := service.NewTokenService("mw-secret", time.Hour)
	token, err := tokens.GenerateToken("user-1")
	require.NoError(t, err)
	other, err := tokens.GenerateToken("user-2")
	require.NoError(t, err)

	h := QueryToken(Authenticate(tokens)(http.HandlerFunc(echoUser)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/nearby?access_token="+token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ws/nearby?access_token="+token, nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "user-2", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/nearby?access_token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
