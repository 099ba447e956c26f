package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c *Controller) Mux() http.Handler {
	r := chi.NewRouter()
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.Get("/health", c.health)
	r.Get("/rooms", c.listRooms)
	r.Put("/rooms/{room}", c.putRoom)
	r.Get("/api/{room}/{name}/", c.joinRoom)

	if c.serveDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(c.serveDir)))
	}

	return r
}
