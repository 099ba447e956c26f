package domain

import (
	"sync"
	"time"
)

type Subtitle struct {
	Lang string `json:"lang"`
	URL  string `json:"url"`
}

type WatcherInfo struct {
	ID            uint32        `json:"id"`
	Name          string        `json:"name"`
	Buffered      float64       `json:"buffered"`
	Position      float64       `json:"position"`
	PlaybackState PlaybackState `json:"playbackState"`
}

// Snapshot is the state of a room as sent in metadata messages.
type Snapshot struct {
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Subtitles []Subtitle    `json:"subtitles"`
	Watchers  []WatcherInfo `json:"watchers"`
}

type Watcher struct {
	ID            uint32
	Name          string
	Position      float64
	Buffered      float64
	PlaybackState PlaybackState
	UpdatedAt     time.Time

	outbound chan Outbound
	done     chan struct{}
	doneOnce sync.Once
}

func newWatcher(id uint32, name string, queueSize int, now time.Time) *Watcher {
	return &Watcher{
		ID:            id,
		Name:          name,
		PlaybackState: Paused,
		UpdatedAt:     now,
		outbound:      make(chan Outbound, queueSize),
		done:          make(chan struct{}),
	}
}

func (w *Watcher) info() WatcherInfo {
	return WatcherInfo{
		ID:            w.ID,
		Name:          w.Name,
		Buffered:      w.Buffered,
		Position:      w.Position,
		PlaybackState: w.PlaybackState,
	}
}

// deliver never blocks; it reports false when the queue is full.
func (w *Watcher) deliver(msg Outbound) bool {
	select {
	case w.outbound <- msg:
		return true
	default:
		return false
	}
}

func (w *Watcher) removed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *Watcher) close() {
	w.doneOnce.Do(func() {
		close(w.done)
	})
}

// Subscription is the handle a connection holds on its watcher.
// The outbound channel is never closed; Done is closed once the watcher
// has been removed from the room.
type Subscription struct {
	w *Watcher
}

func (s *Subscription) ID() uint32 {
	return s.w.ID
}

func (s *Subscription) Name() string {
	return s.w.Name
}

func (s *Subscription) Messages() <-chan Outbound {
	return s.w.outbound
}

func (s *Subscription) Done() <-chan struct{} {
	return s.w.done
}

type watchers struct {
	list []*Watcher
}

func (ws *watchers) add(w *Watcher) {
	ws.list = append(ws.list, w)
}

func (ws *watchers) indexOf(id uint32) int {
	for i, w := range ws.list {
		if w.ID == id {
			return i
		}
	}

	return -1
}

func (ws *watchers) get(id uint32) (*Watcher, bool) {
	i := ws.indexOf(id)
	if i < 0 {
		return nil, false
	}

	return ws.list[i], true
}

func (ws *watchers) remove(id uint32) (*Watcher, bool) {
	i := ws.indexOf(id)
	if i < 0 {
		return nil, false
	}

	w := ws.list[i]
	ws.list = append(ws.list[:i:i], ws.list[i+1:]...)

	return w, true
}

func (ws *watchers) infos() []WatcherInfo {
	infos := make([]WatcherInfo, 0, len(ws.list))
	for _, w := range ws.list {
		infos = append(infos, w.info())
	}

	return infos
}

func (ws *watchers) len() int {
	return len(ws.list)
}
