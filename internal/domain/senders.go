package domain

import (
	"context"
	"slices"
)

func (r *Room) broadcastMetadata(ctx context.Context) {
	r.mu.RLock()
	snapshot := r.snapshotLocked()
	recipients := slices.Clone(r.watchers.list)
	r.mu.RUnlock()

	r.sendToAll(ctx, recipients, Metadata{Snapshot: snapshot})
}

func (r *Room) broadcast(ctx context.Context, msg Outbound) {
	r.mu.RLock()
	recipients := slices.Clone(r.watchers.list)
	r.mu.RUnlock()

	r.sendToAll(ctx, recipients, msg)
}

// sendToAll delivers without holding the room lock. A watcher whose queue is
// full loses the message and is removed from the room.
func (r *Room) sendToAll(ctx context.Context, recipients []*Watcher, msg Outbound) {
	for _, w := range recipients {
		if w.removed() {
			continue
		}

		if w.deliver(msg) {
			continue
		}

		r.logger.WarnContext(ctx, "dropping slow watcher", "watcher_id", w.ID, "type", msg.Type())
		r.evict(w.ID)
	}
}

// evict must not block the actor: RemoveWatcher enqueues a Leave on the
// actor's own queue.
func (r *Room) evict(id uint32) {
	r.mu.RLock()
	w, ok := r.watchers.get(id)
	r.mu.RUnlock()
	if ok {
		w.close()
	}

	go func() {
		if err := r.RemoveWatcher(context.Background(), id); err != nil {
			r.logger.Debug("failed to evict watcher", "watcher_id", id, "error", err)
		}
	}()
}
