package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

type iRoomService interface {
	FindRoom(context.Context, string) (*domain.Room, error)
	ListRooms() []room.RoomSummary
	ListDefinitions(context.Context) ([]string, error)
	PutDefinition(context.Context, *room.PutDefinitionParams) error
}

type Config struct {
	// ServeDir holds the static web client. Nothing is served when empty.
	ServeDir string
}

type Controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	serveDir    string
	logger      *slog.Logger
}

func NewController(roomService iRoomService, cfg *Config, logger *slog.Logger) *Controller {
	c := &Controller{
		roomService: roomService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		serveDir: cfg.ServeDir,
		logger:   logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
