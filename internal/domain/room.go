package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultInboundQueueSize  = 64
	DefaultOutboundQueueSize = 64
)

var (
	ErrRoomClosed         = errors.New("room closed")
	ErrRoomAlreadyRunning = errors.New("room already running")
)

type RoomConfig struct {
	Name              string
	URL               string
	Subtitles         []Subtitle
	InboundQueueSize  int
	OutboundQueueSize int
	Decorations       []string
	// Rand picks decorations. A time seeded source is used when nil.
	Rand   *rand.Rand
	Logger *slog.Logger
	Now    func() time.Time
}

// Room is a named watch session. Its actor (Run) is the only consumer of the
// inbound queue, which gives every room a total order of events.
type Room struct {
	name      string
	url       string
	subtitles []Subtitle

	inbound chan Inbound
	done    chan struct{}
	running atomic.Bool

	mu           sync.RWMutex
	watchers     watchers
	nextID       uint32
	rnd          *rand.Rand
	decorations  []string
	outboundSize int

	logger *slog.Logger
	now    func() time.Time
}

func NewRoom(cfg *RoomConfig) *Room {
	inboundSize := cfg.InboundQueueSize
	if inboundSize <= 0 {
		inboundSize = DefaultInboundQueueSize
	}

	outboundSize := cfg.OutboundQueueSize
	if outboundSize <= 0 {
		outboundSize = DefaultOutboundQueueSize
	}

	rnd := cfg.Rand
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Room{
		name:         cfg.Name,
		url:          cfg.URL,
		subtitles:    cfg.Subtitles,
		inbound:      make(chan Inbound, inboundSize),
		done:         make(chan struct{}),
		nextID:       1,
		rnd:          rnd,
		decorations:  cfg.Decorations,
		outboundSize: outboundSize,
		logger:       logger.With("room", cfg.Name),
		now:          now,
	}
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) URL() string {
	return r.url
}

func (r *Room) WatchersCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.watchers.len()
}

// Send enqueues msg for the actor. It blocks while the queue is full.
func (r *Room) Send(ctx context.Context, msg Inbound) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}

	select {
	case r.inbound <- msg:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return fmt.Errorf("failed to send %s: %w", msg.Type(), ctx.Err())
	}
}

func (r *Room) AddWatcher(ctx context.Context, displayName string) (*Subscription, error) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	name := Decorate(displayName, r.decorations, r.rnd)
	w := newWatcher(id, name, r.outboundSize, r.now())
	r.watchers.add(w)
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "watcher added", "watcher_id", id, "name", name)

	if err := r.Send(ctx, Join{Name: name}); err != nil {
		r.mu.Lock()
		r.watchers.remove(id)
		r.mu.Unlock()
		w.close()

		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	return &Subscription{w: w}, nil
}

// RemoveWatcher is idempotent: removing an absent watcher is not an error.
func (r *Room) RemoveWatcher(ctx context.Context, id uint32) error {
	r.mu.Lock()
	w, ok := r.watchers.remove(id)
	r.mu.Unlock()

	if !ok {
		r.logger.DebugContext(ctx, "watcher already removed", "watcher_id", id)
		return nil
	}
	w.close()

	r.logger.DebugContext(ctx, "watcher removed", "watcher_id", id)

	return r.Send(ctx, Leave{ID: id})
}

// UpdateStatus reports false if the watcher is gone.
func (r *Room) UpdateStatus(id uint32, position, buffered float64, state PlaybackState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watchers.get(id)
	if !ok {
		return false
	}

	w.Position = position
	w.Buffered = buffered
	w.PlaybackState = state
	w.UpdatedAt = r.now()

	return true
}

func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	return Snapshot{
		Name:      r.name,
		URL:       r.url,
		Subtitles: r.subtitles,
		Watchers:  r.watchers.infos(),
	}
}

// Run processes inbound events one at a time until ctx is done.
func (r *Room) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRoomAlreadyRunning
	}
	defer close(r.done)

	r.logger.InfoContext(ctx, "room started", "url", r.url)

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "room stopped")
			return nil
		case msg := <-r.inbound:
			r.handle(ctx, msg)
		}
	}
}

func (r *Room) handle(ctx context.Context, msg Inbound) {
	r.logger.DebugContext(ctx, "room got message", "type", msg.Type(), "message", msg)

	switch m := msg.(type) {
	case Join, Leave:
		r.broadcastMetadata(ctx)
	case Control:
		r.broadcast(ctx, m)
	case Status:
		if !r.UpdateStatus(m.ID, m.Position, m.Buffered, m.PlaybackState) {
			r.logger.DebugContext(ctx, "status for unknown watcher", "watcher_id", m.ID)
		}
		r.broadcastMetadata(ctx)
	default:
		r.logger.WarnContext(ctx, "unknown inbound message", "type", msg.Type())
	}
}
