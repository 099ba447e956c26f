package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/definition"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomAlreadyExists   = errors.New("room already exists")
	ErrReadOnlyDefinitions = errors.New("room definitions are read only")
)

type iDefinitionRepo interface {
	Get(context.Context, string) (definition.Definition, error)
	List(context.Context) ([]string, error)
}

type iWritableDefinitionRepo interface {
	iDefinitionRepo
	Set(context.Context, string, definition.Definition) error
}

type Config struct {
	InboundQueueSize  int
	OutboundQueueSize int
	Decorations       []string
}

type service struct {
	// sources are searched in order when a room is opened for the first time
	sources  []iDefinitionRepo
	writable iWritableDefinitionRepo
	cfg      Config
	logger   *slog.Logger

	// lifetime of every room actor started by the service
	ctx   context.Context
	rooms map[string]*domain.Room
	mu    sync.Mutex
}

// NewService returns the room directory. Room actors run until ctx is done.
// writable may be nil, in which case definitions cannot be stored.
func NewService(ctx context.Context, writable iWritableDefinitionRepo, cfg *Config, logger *slog.Logger, sources ...iDefinitionRepo) *service {
	return &service{
		sources:  sources,
		writable: writable,
		cfg:      *cfg,
		logger:   logger,
		ctx:      ctx,
		rooms:    make(map[string]*domain.Room),
	}
}
