package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSyncedDerivedFromStatus(t *testing.T) {
	for _, s := range []SyncStatus{"", StatusUnsynced, StatusSyncing, StatusError} {
		if (Note{SyncStatus: s}).Synced() {
			t.Errorf("status %q reported synced", s)
		}
	}
	if !(Note{SyncStatus: StatusSynced}).Synced() {
		t.Error("synced status not reported synced")
	}
}

func TestMarshalEmitsDerivedFlag(t *testing.T) {
	n := Note{ID: "1", Title: "t", UpdatedAt: time.Unix(0, 0).UTC()}
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"syncStatus":"unsynced"`) || !strings.Contains(s, `"synced":false`) {
		t.Errorf("unexpected JSON: %s", s)
	}

	data, _ = json.Marshal(n.WithStatus(StatusSynced))
	if !strings.Contains(string(data), `"synced":true`) {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestUnmarshalIgnoresSyncedFlag(t *testing.T) {
	var n Note
	if err := json.Unmarshal([]byte(`{"id":"1","syncStatus":"error","synced":true}`), &n); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if n.Synced() {
		t.Error("synced flag must follow syncStatus")
	}
}

func TestNoteUpdateApply(t *testing.T) {
	title := "new"
	n := NoteUpdate{Title: &title}.Apply(Note{ID: "1", Title: "old", Content: "body"})
	if n.Title != "new" || n.Content != "body" {
		t.Errorf("Apply = %+v", n)
	}

	empty := ""
	n = NoteUpdate{Content: &empty}.Apply(n)
	if n.Content != "" {
		t.Error("explicit empty content should clear the field")
	}
}

func TestNoteMatches(t *testing.T) {
	n := Note{Title: "Äpfel kaufen", Content: "50% off_today"}
	cases := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"äpfel", true},
		{"KAUFEN", true},
		{"%", true},
		{"_", true},
		{"50%", true},
		{"%off", false},
		{"a_fel", false},
		{"birnen", false},
	}
	for _, tc := range cases {
		if got := n.Matches(tc.query); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}
