package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sharetube/watchsync/internal/controller"
	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/definition"
	"github.com/sharetube/watchsync/internal/repository/definition/file"
	definitionRedis "github.com/sharetube/watchsync/internal/repository/definition/redis"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
	"github.com/sharetube/watchsync/pkg/emojipool"
	"github.com/sharetube/watchsync/pkg/redisclient"
	"github.com/sharetube/watchsync/pkg/validator"
)

type AppConfig struct {
	Host              string `json:"host" validate:"required"`
	Port              int    `json:"port" validate:"gte=1,lte=65535"`
	LogLevel          string `json:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	ServeDir          string `json:"serve_dir"`
	RoomGlob          string `json:"room_glob" validate:"required"`
	InboundQueueSize  int    `json:"inbound_queue_size" validate:"gte=1"`
	OutboundQueueSize int    `json:"outbound_queue_size" validate:"gte=1"`
	Decorate          bool   `json:"decorate"`
	PreloadRooms      bool   `json:"preload_rooms"`
	// Redis is optional; definitions are read only without it.
	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port" validate:"gte=0,lte=65535"`
	RedisPassword string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	return validator.NewValidator().Check(cfg)
}

func newLogger(cfg *AppConfig) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type iRoomService interface {
	FindRoom(context.Context, string) (*domain.Room, error)
	AddRoom(context.Context, string, definition.Definition) (*domain.Room, error)
	ListRooms() []room.RoomSummary
	ListDefinitions(context.Context) ([]string, error)
	PutDefinition(context.Context, *room.PutDefinitionParams) error
}

type iDefinitionRepo interface {
	Get(context.Context, string) (definition.Definition, error)
	List(context.Context) ([]string, error)
}

// preloadRooms starts a room for every definition in repo.
func preloadRooms(ctx context.Context, roomService iRoomService, repo iDefinitionRepo) error {
	names, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list room definitions: %w", err)
	}

	for _, name := range names {
		def, err := repo.Get(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to get room definition %s: %w", name, err)
		}

		if _, err := roomService.AddRoom(ctx, name, def); err != nil {
			return fmt.Errorf("failed to start room %s: %w", name, err)
		}
	}

	return nil
}

// newHandler wires repositories, the room directory and the controller.
// Rooms run until ctx is done. The returned func releases what was opened.
func newHandler(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (http.Handler, func(), error) {
	fileRepo, err := file.NewRepo(cfg.RoomGlob, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load room definitions: %w", err)
	}

	roomConfig := &room.Config{
		InboundQueueSize:  cfg.InboundQueueSize,
		OutboundQueueSize: cfg.OutboundQueueSize,
	}
	if cfg.Decorate {
		roomConfig.Decorations = emojipool.Default()
	}

	cleanup := func() {}

	var roomService iRoomService
	if cfg.RedisHost == "" {
		logger.InfoContext(ctx, "redis is not configured, room definitions are read only")
		roomService = room.NewService(ctx, nil, roomConfig, logger, fileRepo)
	} else {
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		cleanup = func() { rc.Close() }

		// definitions on disk take precedence over stored ones
		redisRepo := definitionRedis.NewRepo(rc, logger)
		roomService = room.NewService(ctx, redisRepo, roomConfig, logger, fileRepo, redisRepo)
	}

	if cfg.PreloadRooms {
		if err := preloadRooms(ctx, roomService, fileRepo); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	c := controller.NewController(roomService, &controller.Config{ServeDir: cfg.ServeDir}, logger)

	return c.Mux(), cleanup, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	handler, cleanup, err := newHandler(serverCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: handler}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		select {
		case <-sig:
		case <-serverCtx.Done():
		}

		shutdownCtx, c := context.WithTimeout(context.WithoutCancel(serverCtx), 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
