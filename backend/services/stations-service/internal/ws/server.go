package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/http/middleware"
)

// Server upgrades HTTP connections to the live nearby feed.
type Server struct {
	manager      *Manager
	processor    MessageProcessor
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	base     context.Context
	shutdown context.CancelFunc
}

// NewServer builds ws server.
func NewServer(manager *Manager, processor MessageProcessor, writeTimeout time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}
	base, shutdown := context.WithCancel(context.Background())
	return &Server{
		base:         base,
		shutdown:     shutdown,
		manager:      manager,
		processor:    processor,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Shutdown closes every open feed with a going-away frame and refuses new upgrades.
func (s *Server) Shutdown() {
	s.shutdown()
}

// HandleWS is HTTP handler for GET /ws/nearby. The identity is fixed at upgrade time.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if s.base.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	userID := middleware.UserIDFromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(s.base)
	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
		_ = conn.Close()
	})
	id := uuid.NewString()
	connection := NewConnection(id, userID, conn, s.processor, s.writeTimeout, s.logger, func(id string) {
		stop()
		s.manager.Remove(id)
		cancel()
		_ = conn.Close()
	})
	s.manager.Add(connection)

	go connection.Start(ctx)
	s.logger.Info("nearby feed connected", zap.String("conn_id", id), zap.Bool("authenticated", userID != ""))
}
