package room

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/definition"
	"golang.org/x/exp/maps"
)

// FindRoom returns the running room with the given name, starting it from its
// definition on first use. Definition sources are consulted without holding the
// directory lock.
func (s *service) FindRoom(ctx context.Context, name string) (*domain.Room, error) {
	s.mu.Lock()
	r, ok := s.rooms[name]
	s.mu.Unlock()
	if ok {
		return r, nil
	}

	def, err := s.lookupDefinition(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// another join may have started the room during the lookup
	if r, ok := s.rooms[name]; ok {
		return r, nil
	}

	return s.startRoomLocked(ctx, name, def), nil
}

// AddRoom starts a room eagerly, without consulting the definition sources.
func (s *service) AddRoom(ctx context.Context, name string, def definition.Definition) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomAlreadyExists, name)
	}

	return s.startRoomLocked(ctx, name, def), nil
}

func (s *service) ListRooms() []RoomSummary {
	s.mu.Lock()
	names := maps.Keys(s.rooms)
	rooms := maps.Clone(s.rooms)
	s.mu.Unlock()

	slices.Sort(names)

	summaries := make([]RoomSummary, 0, len(names))
	for _, name := range names {
		r := rooms[name]
		summaries = append(summaries, RoomSummary{
			Name:     name,
			URL:      r.URL(),
			Watchers: r.WatchersCount(),
		})
	}

	return summaries
}

// PutDefinition stores a definition for rooms that are not running yet.
// A running room keeps the definition it was started with.
func (s *service) PutDefinition(ctx context.Context, params *PutDefinitionParams) error {
	if s.writable == nil {
		return ErrReadOnlyDefinitions
	}

	def := definition.Definition{URL: params.URL}
	for _, sub := range params.Subs {
		def.Subs = append(def.Subs, definition.Subtitle{Lang: sub.Lang, URL: sub.URL})
	}

	if err := s.writable.Set(ctx, params.Name, def); err != nil {
		return fmt.Errorf("failed to put room definition: %w", err)
	}

	s.logger.InfoContext(ctx, "room definition stored", "room", params.Name, "url", params.URL)
	return nil
}

func (s *service) lookupDefinition(ctx context.Context, name string) (definition.Definition, error) {
	for _, source := range s.sources {
		def, err := source.Get(ctx, name)
		if err == nil {
			return def, nil
		}

		if !errors.Is(err, definition.ErrDefinitionNotFound) {
			return definition.Definition{}, fmt.Errorf("failed to look up room %s: %w", name, err)
		}
	}

	return definition.Definition{}, fmt.Errorf("%w: %s", ErrRoomNotFound, name)
}

func (s *service) startRoomLocked(ctx context.Context, name string, def definition.Definition) *domain.Room {
	subtitles := make([]domain.Subtitle, 0, len(def.Subs))
	for _, sub := range def.Subs {
		subtitles = append(subtitles, domain.Subtitle{Lang: sub.Lang, URL: sub.URL})
	}

	r := domain.NewRoom(&domain.RoomConfig{
		Name:              name,
		URL:               def.URL,
		Subtitles:         subtitles,
		InboundQueueSize:  s.cfg.InboundQueueSize,
		OutboundQueueSize: s.cfg.OutboundQueueSize,
		Decorations:       s.cfg.Decorations,
		Logger:            s.logger,
	})
	s.rooms[name] = r

	go func() {
		if err := r.Run(s.ctx); err != nil {
			s.logger.ErrorContext(s.ctx, "room actor failed", "room", name, "error", err)
		}
	}()

	s.logger.InfoContext(ctx, "room created", "room", name, "url", def.URL)
	return r
}

// ListDefinitions returns the names of every room that can be opened.
func (s *service) ListDefinitions(ctx context.Context) ([]string, error) {
	var names []string
	for _, source := range s.sources {
		sourceNames, err := source.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list room definitions: %w", err)
		}

		names = append(names, sourceNames...)
	}

	slices.Sort(names)

	return slices.Compact(names), nil
}
