package api

import (
	"github.com/starford/offnote/internal/models"
	"github.com/starford/offnote/internal/syncengine"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Groceries"`
	Content string `json:"content" example:"milk, eggs"`
}

// UpdateNoteRequest is the request body for updating a note. Omitted fields
// are left unchanged.
type UpdateNoteRequest = models.NoteUpdate

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// QueueResponse lists pending remote operations in delivery order.
type QueueResponse struct {
	Operations []models.PendingOp `json:"operations" validate:"required"`
}

// StatusResponse is the connectivity and queue snapshot.
type StatusResponse = syncengine.Status

// SyncResponse reports the outcome of a manual drain.
type SyncResponse struct {
	Drained   int    `json:"drained"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}
