package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit   = 64 * 1024
	readTimeout = 60 * time.Second
	sendBuffer  = 16
)

// MessageProcessor answers one client frame.
type MessageProcessor interface {
	Process(ctx context.Context, userID string, raw []byte) ([]byte, error)
}

// Connection represents one client socket.
type Connection struct {
	id           string
	userID       string
	ws           *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	processor    MessageProcessor
	writeTimeout time.Duration
	onClose      func(id string)
}

// NewConnection builds connection wrapper. userID is empty for anonymous clients.
func NewConnection(id, userID string, ws *websocket.Conn, processor MessageProcessor, writeTimeout time.Duration, logger *zap.Logger, onClose func(string)) *Connection {
	return &Connection{
		id:           id,
		userID:       userID,
		ws:           ws,
		send:         make(chan []byte, sendBuffer),
		logger:       logger.With(zap.String("conn_id", id)),
		processor:    processor,
		writeTimeout: writeTimeout,
		onClose:      onClose,
	}
}

// ID returns identifier.
func (c *Connection) ID() string {
	return c.id
}

// Start launches the write pump and blocks in the read pump.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Info("connection read closed", zap.Error(err))
			return
		}

		response, err := c.processor.Process(ctx, c.userID, message)
		if err != nil {
			c.logger.Warn("failed to process message", zap.Error(err))
			continue
		}
		if response != nil {
			c.Send(response)
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// Send enqueues a message for writing. Only the read pump sends, so send is never closed
// underneath it.
func (c *Connection) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping outgoing message, buffer full")
	}
}

// Ping sends a ping control frame. Safe to call concurrently with the pumps.
func (c *Connection) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.writeTimeout))
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	close(c.send)
	if c.onClose != nil {
		c.onClose(c.id)
	}
}
