package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/offnote/internal/apperr"
	"github.com/starford/offnote/internal/models"
	"github.com/starford/offnote/internal/remote/remotetest"
)

func testNote(id string) models.Note {
	return models.Note{
		ID:         id,
		Title:      "A",
		Content:    "B",
		UpdatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		SyncStatus: models.StatusSyncing,
	}
}

func TestClientCreateUpdateDeleteList(t *testing.T) {
	srv := remotetest.New()
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client(), time.Second)
	ctx := context.Background()

	created, err := c.Create(ctx, testNote("n1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "n1" || created.Title != "A" {
		t.Errorf("created = %+v", created)
	}
	if created.SyncStatus != "" {
		t.Errorf("remote should not echo sync status, got %q", created.SyncStatus)
	}

	upd := testNote("n1")
	upd.Title = "A2"
	updated, err := c.Update(ctx, "n1", upd)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "A2" {
		t.Errorf("updated title = %q", updated.Title)
	}

	all, err := c.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || all[0].ID != "n1" {
		t.Errorf("ListAll = %+v", all)
	}

	if err := c.Delete(ctx, "n1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if srv.Len() != 0 {
		t.Errorf("remote still holds %d notes", srv.Len())
	}

	calls := srv.Calls()
	want := []remotetest.Call{
		{Method: http.MethodPost, NoteID: "n1"},
		{Method: http.MethodPut, NoteID: "n1"},
		{Method: http.MethodDelete, NoteID: "n1"},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestClientSendsBodyWithoutSyncMetadata(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"n1","title":"A","content":"B","updatedAt":"2024-05-01T12:00:00Z"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client(), time.Second)
	if _, err := c.Create(context.Background(), testNote("n1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if strings.Contains(body, "syncStatus") || strings.Contains(body, "synced") {
		t.Errorf("request body leaked sync metadata: %s", body)
	}
	if !strings.Contains(body, `"id":"n1"`) {
		t.Errorf("request body missing id: %s", body)
	}
}

func TestClientNon2xxIsRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client(), time.Second)
	_, err := c.Update(context.Background(), "n1", testNote("n1"))
	var re *apperr.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.Op != OpUpdate {
		t.Errorf("op = %q, want %q", re.Op, OpUpdate)
	}
	if re.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", re.StatusCode)
	}
	if !strings.Contains(re.Error(), "boom") {
		t.Errorf("error detail missing: %v", re)
	}
}

func TestClientDoesNotRetry(t *testing.T) {
	srv := remotetest.New()
	defer srv.Close()
	srv.FailNext(1)

	c := NewClient(srv.URL, srv.Client(), time.Second)
	if err := c.Delete(context.Background(), "n1"); !apperr.IsRemote(err) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if got := len(srv.Calls()); got != 1 {
		t.Errorf("expected exactly 1 call, got %d", got)
	}
}

func TestClientDeadlineIsRemoteError(t *testing.T) {
	srv := remotetest.New()
	defer srv.Close()
	srv.SetDelay(500 * time.Millisecond)

	c := NewClient(srv.URL, srv.Client(), 50*time.Millisecond)
	start := time.Now()
	_, err := c.Create(context.Background(), testNote("slow"))
	if !apperr.IsRemote(err) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Errorf("call was not bounded by the deadline: %v", time.Since(start))
	}
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(url, nil, time.Second)
	_, err := c.ListAll(context.Background())
	var re *apperr.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.StatusCode != 0 || re.Op != OpListAll {
		t.Errorf("unexpected error fields: %+v", re)
	}
}

func TestPing(t *testing.T) {
	srv := remotetest.New()
	defer srv.Close()
	c := NewClient(srv.URL+"/", srv.Client(), time.Second)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	srv.SetFailing(true)
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected Ping to fail when remote is failing")
	}
}
