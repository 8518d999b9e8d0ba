// Package models defines the domain types for offnote.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// SyncStatus describes where a note stands in the replication pipeline.
type SyncStatus string

// Sync statuses.
const (
	StatusUnsynced SyncStatus = "unsynced"
	StatusSyncing  SyncStatus = "syncing"
	StatusSynced   SyncStatus = "synced"
	StatusError    SyncStatus = "error"
)

// Normalize maps the empty status to unsynced.
func (s SyncStatus) Normalize() SyncStatus {
	if s == "" {
		return StatusUnsynced
	}
	return s
}

// Valid reports whether s is one of the known statuses (empty counts as unsynced).
func (s SyncStatus) Valid() bool {
	switch s.Normalize() {
	case StatusUnsynced, StatusSyncing, StatusSynced, StatusError:
		return true
	}
	return false
}

// Note is a titled text document with sync metadata.
type Note struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	SyncStatus SyncStatus `json:"syncStatus,omitempty"`
}

// Synced is derived from SyncStatus; there is no separately stored flag.
func (n Note) Synced() bool {
	return n.SyncStatus == StatusSynced
}

// Matches reports whether title or content contains query, ignoring case.
// The query is literal text; an empty query matches every note.
func (n Note) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Content), q)
}

// WithStatus returns a copy of n carrying status s.
func (n Note) WithStatus(s SyncStatus) Note {
	n.SyncStatus = s
	return n
}

type noteJSON struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	SyncStatus SyncStatus `json:"syncStatus"`
	Synced     bool       `json:"synced"`
}

// MarshalJSON emits the legacy "synced" boolean alongside syncStatus.
func (n Note) MarshalJSON() ([]byte, error) {
	return json.Marshal(noteJSON{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		UpdatedAt:  n.UpdatedAt,
		SyncStatus: n.SyncStatus.Normalize(),
		Synced:     n.Synced(),
	})
}

// UnmarshalJSON ignores the incoming "synced" flag; syncStatus is authoritative.
func (n *Note) UnmarshalJSON(data []byte) error {
	var raw noteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Note{
		ID:         raw.ID,
		Title:      raw.Title,
		Content:    raw.Content,
		UpdatedAt:  raw.UpdatedAt,
		SyncStatus: raw.SyncStatus,
	}
	return nil
}

// NoteUpdate carries the mutable fields of an update. Nil fields are left unchanged.
type NoteUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Apply merges u over n and returns the result.
func (u NoteUpdate) Apply(n Note) Note {
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.Content != nil {
		n.Content = *u.Content
	}
	return n
}

// OpKind tags a queued remote operation.
type OpKind string

// Queued operation kinds.
const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// PendingOp is one entry of the retry queue. Seq is assigned by the queue
// on append and is strictly increasing.
type PendingOp struct {
	Seq        int64     `json:"seq"`
	Kind       OpKind    `json:"kind"`
	Note       Note      `json:"note"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}
