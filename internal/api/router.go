package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events. remote, if non-nil,
// backs GET /remote/notes.
func NewRouter(eng Engine, remote RemoteLister, sseHandler http.Handler) chi.Router {
	h := NewHandler(eng, remote)

	r := chi.NewRouter()
	r.Use(LimitBody(DefaultMaxBody))
	r.Use(RequireJSON)

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Sync state.
	r.Get("/status", h.Status)
	r.Get("/queue", h.Queue)
	r.Post("/sync", h.Sync)
	r.Get("/remote/notes", h.RemoteNotes)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
