package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNoRoom         = errors.New("connection is not bound to a room")
)

// Only transitions and status reports are accepted from clients. Join and
// leave are produced by the room itself.
func (c *Controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	wsrouter.Handle(mux, string(domain.TypePlay), c.handleControl(domain.TypePlay))
	wsrouter.Handle(mux, string(domain.TypePause), c.handleControl(domain.TypePause))
	wsrouter.Handle(mux, string(domain.TypeSeek), c.handleControl(domain.TypeSeek))
	wsrouter.Handle(mux, string(domain.TypeStatus), c.handleStatus)

	return mux
}

// Any id sent by the client is ignored; the connection's watcher id is used.
type controlInput struct {
	RequestID *uint32 `json:"requestId" validate:"required"`
	Time      float64 `json:"time"`
}

func (c *Controller) handleControl(kind domain.MessageType) func(context.Context, controlInput) error {
	return func(ctx context.Context, input controlInput) error {
		c.logger.DebugContext(ctx, "websocket message received", "payload", input)

		if err := c.validate.Check(input); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}

		r := c.getRoomFromCtx(ctx)
		if r == nil {
			return ErrNoRoom
		}

		return r.Send(ctx, domain.Control{
			Kind:      kind,
			ID:        c.getWatcherIDFromCtx(ctx),
			RequestID: *input.RequestID,
			Time:      input.Time,
		})
	}
}

type statusInput struct {
	Position      float64               `json:"position"`
	Buffered      float64               `json:"buffered"`
	PlaybackState *domain.PlaybackState `json:"playbackState" validate:"required"`
}

func (c *Controller) handleStatus(ctx context.Context, input statusInput) error {
	c.logger.DebugContext(ctx, "websocket message received", "payload", input)

	if err := c.validate.Check(input); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	r := c.getRoomFromCtx(ctx)
	if r == nil {
		return ErrNoRoom
	}

	return r.Send(ctx, domain.Status{
		ID:            c.getWatcherIDFromCtx(ctx),
		Position:      input.Position,
		Buffered:      input.Buffered,
		PlaybackState: *input.PlaybackState,
	})
}
