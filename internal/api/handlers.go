package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/offnote/internal/apperr"
	"github.com/starford/offnote/internal/models"
	"github.com/starford/offnote/internal/syncengine"
)

// Engine is the subset of *syncengine.Engine the API needs.
type Engine interface {
	Notes(ctx context.Context) ([]models.Note, error)
	Search(ctx context.Context, query string) ([]models.Note, error)
	CreateNote(ctx context.Context, title, content string) (models.Note, error)
	UpdateNote(ctx context.Context, id string, upd models.NoteUpdate) (models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	Status(ctx context.Context) (syncengine.Status, error)
	Pending(ctx context.Context) ([]models.PendingOp, error)
	SyncChanges(ctx context.Context) (syncengine.DrainResult, error)
}

// RemoteLister lists the notes held by the remote store.
type RemoteLister interface {
	ListAll(ctx context.Context) ([]models.Note, error)
}

// Handler holds API route handlers.
type Handler struct {
	eng    Engine
	remote RemoteLister
}

// NewHandler creates a new Handler. remote may be nil.
func NewHandler(eng Engine, remote RemoteLister) *Handler {
	return &Handler{eng: eng, remote: remote}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes ordered by updatedAt
//	@Tags			notes
//	@Produce		json
//	@Param			q	query		string	false	"Substring filter over title and content"
//	@Success		200	{object}	NoteListResponse
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	var (
		notes []models.Note
		err   error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		notes, err = h.eng.Search(r.Context(), q)
	} else {
		notes, err = h.eng.Notes(r.Context())
	}
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !readJSON(w, r, &req) {
		return
	}
	note, err := h.eng.CreateNote(r.Context(), req.Title, req.Content)
	if err != nil {
		slog.Error("create note failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateNoteRequest
	if !readJSON(w, r, &req) {
		return
	}
	note, err := h.eng.UpdateNote(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("update note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.eng.DeleteNote(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("delete note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/status.
//
//	@Summary		Connectivity flag and queue depth
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.eng.Status(r.Context())
	if err != nil {
		slog.Error("status failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Queue handles GET /api/queue.
//
//	@Summary		Pending remote operations
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	QueueResponse
//	@Router			/queue [get]
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	ops, err := h.eng.Pending(r.Context())
	if err != nil {
		slog.Error("queue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ops == nil {
		ops = []models.PendingOp{}
	}
	writeJSON(w, http.StatusOK, QueueResponse{Operations: ops})
}

// Sync handles POST /api/sync.
//
//	@Summary		Drain the retry queue now
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		409	{object}	SyncResponse	"Drain already running"
//	@Failure		502	{object}	SyncResponse	"Drain halted on a remote failure"
//	@Failure		503	{object}	SyncResponse	"Offline"
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.eng.SyncChanges(r.Context())
	body := SyncResponse{Drained: res.Drained, Remaining: res.Remaining}
	if err == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}

	body.Error = err.Error()
	var derr *apperr.DrainError
	switch {
	case errors.Is(err, apperr.ErrDrainInProgress):
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, apperr.ErrOffline):
		writeJSON(w, http.StatusServiceUnavailable, body)
	case errors.As(err, &derr):
		writeJSON(w, http.StatusBadGateway, body)
	default:
		slog.Error("sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, SyncResponse{Error: "internal error"})
	}
}

// RemoteNotes handles GET /api/remote/notes.
//
//	@Summary		List notes held by the remote store
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Failure		502	{object}	errResponse
//	@Router			/remote/notes [get]
func (h *Handler) RemoteNotes(w http.ResponseWriter, r *http.Request) {
	if h.remote == nil {
		writeError(w, http.StatusNotImplemented, "remote not configured")
		return
	}
	notes, err := h.remote.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}
