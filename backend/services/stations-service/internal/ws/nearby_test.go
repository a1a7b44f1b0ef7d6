package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/http/middleware"
	"radiowalk/backend/services/stations-service/internal/models"
	"radiowalk/backend/services/stations-service/internal/service"
)

type fakeFinder struct {
	mu  sync.Mutex
	got []service.NearbyQuery
	err error
}

func (f *fakeFinder) queries() []service.NearbyQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.NearbyQuery(nil), f.got...)
}

func (f *fakeFinder) FindNearby(_ context.Context, q service.NearbyQuery) ([]models.NearbyStation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, q)
	if f.err != nil {
		return nil, f.err
	}
	return []models.NearbyStation{{Station: models.Station{ID: "s-1", Name: "Mission FM"}, DistanceKm: 1.2}}, nil
}

func TestNearbyProcessor_Process(t *testing.T) {
	finder := &fakeFinder{}
	p := NewNearbyProcessor(finder)

	out, err := p.Process(context.Background(), "u-1", []byte(`{"latitude":37.77,"longitude":-122.41,"mode":"both","tags":"jazz"}`))
	require.NoError(t, err)

	var reply struct {
		Stations []models.NearbyStation `json:"stations"`
	}
	require.NoError(t, json.Unmarshal(out, &reply))
	require.Len(t, reply.Stations, 1)
	assert.Equal(t, 1.2, reply.Stations[0].DistanceKm)

	got := finder.queries()
	require.Len(t, got, 1)
	assert.Equal(t, models.ModeBoth, got[0].Mode)
	assert.Equal(t, "u-1", got[0].RequesterID)
	assert.Equal(t, "jazz", got[0].Tags)
}

func TestNearbyProcessor_ErrorReplies(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		finder   *fakeFinder
		wantCode string
	}{
		{name: "bad json", frame: `{`, finder: &fakeFinder{}, wantCode: "VALIDATION_ERROR"},
		{name: "missing coordinates", frame: `{"mode":"PUBLIC"}`, finder: &fakeFinder{}, wantCode: "VALIDATION_ERROR"},
		{name: "bad mode", frame: `{"latitude":1,"longitude":1,"mode":"ALL"}`, finder: &fakeFinder{}, wantCode: "VALIDATION_ERROR"},
		{
			name:     "private without identity",
			frame:    `{"latitude":1,"longitude":1,"mode":"PRIVATE"}`,
			finder:   &fakeFinder{err: models.NewAuthorizationError("sign in")},
			wantCode: "UNAUTHORIZED",
		},
		{name: "store failure", frame: `{"latitude":1,"longitude":1}`, finder: &fakeFinder{err: errors.New("db down")}, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewNearbyProcessor(tt.finder).Process(context.Background(), "", []byte(tt.frame))
			require.NoError(t, err)
			var reply errorReply
			require.NoError(t, json.Unmarshal(out, &reply))
			assert.Equal(t, tt.wantCode, reply.Code)
			assert.NotContains(t, reply.Error, "db down")
		})
	}
}

func TestServer_NearbyFeed(t *testing.T) {
	finder := &fakeFinder{}
	manager := NewManager(time.Minute)
	server := NewServer(manager, NewNearbyProcessor(finder), time.Second, zap.NewNop())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.HandleWS(w, r.WithContext(middleware.WithUserID(r.Context(), "u-7")))
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"latitude":37.77,"longitude":-122.41}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"stations"`)
	assert.Equal(t, 1, manager.Count())

	got := finder.queries()
	require.Len(t, got, 1)
	assert.Equal(t, "u-7", got[0].RequesterID)
	assert.Equal(t, models.ModePublic, got[0].Mode)

	conn.Close()
	assert.Eventually(t, func() bool { return manager.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_ShutdownClosesFeeds(t *testing.T) {
	manager := NewManager(time.Minute)
	server := NewServer(manager, NewNearbyProcessor(&fakeFinder{}), time.Second, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return manager.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	server.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err.Error())
	assert.Eventually(t, func() bool { return manager.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
