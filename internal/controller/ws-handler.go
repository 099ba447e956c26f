package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
	"github.com/sharetube/watchsync/pkg/rest"
	"github.com/sharetube/watchsync/pkg/wsrouter"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

var ErrWatcherRemoved = errors.New("watcher removed from room")

type joinRoomParams struct {
	Room string `json:"room" validate:"required,max=64"`
	Name string `json:"name" validate:"required,max=128"`
}

func (c *Controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	params, err := c.getJoinRoomParams(r)
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to read path params", "error", err)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(params); !ok {
		c.logger.DebugContext(r.Context(), "invalid join params", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("room", params.Room))

	rm, err := c.roomService.FindRoom(ctx, params.Room)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			c.logger.DebugContext(ctx, "room not found")
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
			return
		}

		c.logger.ErrorContext(ctx, "failed to find room", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	sub, err := rm.AddWatcher(ctx, params.Name)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to add watcher", "error", err)
		c.writeClose(conn, websocket.CloseTryAgainLater, "room unavailable")
		return
	}

	ctx = ctxlogger.AppendCtx(ctx, slog.Any("watcher_id", sub.ID()))
	c.logger.InfoContext(ctx, "watcher connected", "name", sub.Name())

	defer func() {
		// the request context may already be done here
		if err := rm.RemoveWatcher(context.WithoutCancel(ctx), sub.ID()); err != nil {
			c.logger.WarnContext(ctx, "failed to remove watcher", "error", err)
		}
	}()

	if err := c.writeMessage(conn, domain.Identity{ID: sub.ID()}); err != nil {
		c.logger.InfoContext(ctx, "failed to send id", "error", err)
		return
	}

	err = c.serveWatcher(ctx, conn, rm, sub)
	c.logger.InfoContext(ctx, "watcher disconnected", "reason", err)
}

func (c *Controller) getJoinRoomParams(r *http.Request) (joinRoomParams, error) {
	roomName, err := url.PathUnescape(chi.URLParam(r, "room"))
	if err != nil {
		return joinRoomParams{}, fmt.Errorf("invalid room: %w", err)
	}

	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		return joinRoomParams{}, fmt.Errorf("invalid name: %w", err)
	}

	return joinRoomParams{Room: roomName, Name: name}, nil
}

// serveWatcher runs the reader and the writer of one connection. The first
// one to fail stops the other.
func (c *Controller) serveWatcher(ctx context.Context, conn *websocket.Conn, rm *domain.Room, sub *domain.Subscription) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		conn.Close()
		return nil
	})

	g.Go(func() error {
		return c.readPump(gctx, conn, rm, sub.ID())
	})

	g.Go(func() error {
		return c.writePump(gctx, conn, sub)
	})

	return g.Wait()
}

func (c *Controller) readPump(ctx context.Context, conn *websocket.Conn, rm *domain.Room, id uint32) error {
	conn.SetReadLimit(maxMessageSize)

	ctx = context.WithValue(ctx, roomCtxKey, rm)
	ctx = context.WithValue(ctx, watcherIDCtxKey, id)

	err := c.wsmux.ServeConn(ctx, conn)
	switch {
	case errors.Is(err, wsrouter.ErrUnexpectedFrame):
		c.writeClose(conn, websocket.CloseUnsupportedData, "text frames only")
	case errors.Is(err, wsrouter.ErrMalformedMessage),
		errors.Is(err, wsrouter.ErrUnknownMessageType),
		errors.Is(err, ErrInvalidPayload):
		c.logger.InfoContext(ctx, "protocol error", "error", err)
		c.writeClose(conn, websocket.CloseProtocolError, "protocol error")
	}

	return fmt.Errorf("read: %w", err)
}

func (c *Controller) writePump(ctx context.Context, conn *websocket.Conn, sub *domain.Subscription) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done():
			c.writeClose(conn, websocket.CloseTryAgainLater, "too slow")
			return ErrWatcherRemoved
		case msg := <-sub.Messages():
			if err := c.writeMessage(conn, msg); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *Controller) writeMessage(conn *websocket.Conn, msg domain.Outbound) error {
	data, err := domain.Encode(msg)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Controller) writeClose(conn *websocket.Conn, code int, text string) {
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
