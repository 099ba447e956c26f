package controller

import (
	"context"

	"github.com/sharetube/watchsync/internal/domain"
)

type contextKey int

const (
	roomCtxKey contextKey = iota
	watcherIDCtxKey
)

func (c *Controller) getRoomFromCtx(ctx context.Context) *domain.Room {
	r, ok := ctx.Value(roomCtxKey).(*domain.Room)
	if !ok {
		return nil
	}

	return r
}

func (c *Controller) getWatcherIDFromCtx(ctx context.Context) uint32 {
	id, ok := ctx.Value(watcherIDCtxKey).(uint32)
	if !ok {
		return 0
	}

	return id
}
