package syncengine

import "github.com/starford/offnote/internal/models"

// EventKind names an engine notification.
type EventKind string

// Engine notifications.
const (
	EventNoteCreated  EventKind = "note.created"
	EventNoteUpdated  EventKind = "note.updated"
	EventNoteDeleted  EventKind = "note.deleted"
	EventNoteStatus   EventKind = "note.status"
	EventConnectivity EventKind = "connectivity.changed"
	EventDrained      EventKind = "sync.drained"
	EventDrainFailed  EventKind = "sync.failed"
)

// Event is published after engine state changes. Fields irrelevant to Kind
// are left zero.
type Event struct {
	Kind      EventKind         `json:"kind"`
	NoteID    string            `json:"noteId,omitempty"`
	Status    models.SyncStatus `json:"status,omitempty"`
	Online    bool              `json:"online"`
	Drained   int               `json:"drained,omitempty"`
	Remaining int               `json:"remaining,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Notifier receives engine events. It must not block.
type Notifier func(Event)
