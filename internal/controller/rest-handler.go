package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/rest"
)

func (c *Controller) health(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"status": "ok"})
}

type listRoomsResponse struct {
	Active    []room.RoomSummary `json:"active"`
	Available []string           `json:"available"`
}

func (c *Controller) listRooms(w http.ResponseWriter, r *http.Request) {
	available, err := c.roomService.ListDefinitions(r.Context())
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to list room definitions", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": listRoomsResponse{
		Active:    c.roomService.ListRooms(),
		Available: available,
	}})
}

type subtitleRequest struct {
	Lang string `json:"lang" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}

type putRoomRequest struct {
	Name string            `json:"-" validate:"required,max=64"`
	URL  string            `json:"url" validate:"required,url"`
	Subs []subtitleRequest `json:"subs" validate:"dive"`
}

func (c *Controller) putRoom(w http.ResponseWriter, r *http.Request) {
	var req putRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read body", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}
	req.Name = chi.URLParam(r, "room")

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.DebugContext(r.Context(), "invalid room definition", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	params := room.PutDefinitionParams{Name: req.Name, URL: req.URL}
	for _, sub := range req.Subs {
		params.Subs = append(params.Subs, room.SubtitleParams{Lang: sub.Lang, URL: sub.URL})
	}

	if err := c.roomService.PutDefinition(r.Context(), &params); err != nil {
		if errors.Is(err, room.ErrReadOnlyDefinitions) {
			rest.WriteJSON(w, http.StatusNotImplemented, rest.Envelope{"error": err.Error()})
			return
		}

		c.logger.ErrorContext(r.Context(), "failed to put room definition", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
