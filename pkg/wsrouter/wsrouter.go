package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
)

var (
	ErrUnexpectedFrame    = errors.New("unexpected frame type")
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
}

type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

type WSRouter struct {
	routes map[string]HandlerFunc
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) HandleRaw(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// Handle registers a handler that receives the payload decoded into T.
func Handle[T any](r *WSRouter, messageType string, handler func(ctx context.Context, input T) error) {
	r.HandleRaw(messageType, func(ctx context.Context, payload json.RawMessage) error {
		var input T
		if err := json.Unmarshal(payload, &input); err != nil {
			return fmt.Errorf("%w: %s payload: %w", ErrMalformedMessage, messageType, err)
		}

		return handler(ctx, input)
	})
}

// ServeConn reads text frames until the connection fails or a handler
// returns an error. Any frame that cannot be routed ends the loop.
// Handlers get a context carrying ws_request_id and message_type log attributes.
func (r *WSRouter) ServeConn(ctx context.Context, conn Conn) error {
	for {
		frameType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if frameType != websocket.TextMessage {
			return fmt.Errorf("%w: %d", ErrUnexpectedFrame, frameType)
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
		}

		msgCtx := ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", uuid.NewString()))
		msgCtx = ctxlogger.AppendCtx(msgCtx, slog.String("message_type", msg.Type))

		if err := handler(msgCtx, msg.Payload); err != nil {
			return err
		}
	}
}
