package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/offnote/internal/models"
	"github.com/starford/offnote/internal/remote"
	"github.com/starford/offnote/internal/remote/remotetest"
	"github.com/starford/offnote/internal/sse"
	"github.com/starford/offnote/internal/syncengine"
	"github.com/starford/offnote/internal/testutil"
)

type testEnv struct {
	eng    *syncengine.Engine
	srv    *remotetest.Server
	router http.Handler
}

func newTestEnv(t *testing.T, opts ...syncengine.Option) *testEnv {
	t.Helper()
	eng, _, srv := testutil.TestEngine(t, opts...)
	client := remote.NewClient(srv.URL, srv.Client(), time.Second)
	return &testEnv{eng: eng, srv: srv, router: NewRouter(eng, client, nil)}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateNoteOffline(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: "A", Content: "B"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var raw map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	if raw["syncStatus"] != "unsynced" || raw["synced"] != false {
		t.Errorf("body = %v", raw)
	}
	if raw["id"] == "" || raw["updatedAt"] == nil {
		t.Errorf("id/updatedAt missing: %v", raw)
	}

	st := decode[StatusResponse](t, env.do(t, http.MethodGet, "/status", nil))
	if st.Online || st.Pending != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestCreateNoteOnline(t *testing.T) {
	env := newTestEnv(t, syncengine.WithOnline(true))

	w := env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: "A", Content: "B"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	n := decode[models.Note](t, w)
	if !n.Synced() {
		t.Errorf("status = %q, want synced", n.SyncStatus)
	}
	if _, ok := env.srv.Note(n.ID); !ok {
		t.Error("note not replicated")
	}
}

func TestCreateNoteRemoteDown(t *testing.T) {
	env := newTestEnv(t, syncengine.WithOnline(true))
	env.srv.SetFailing(true)

	w := env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: "A"})
	if w.Code != http.StatusCreated {
		t.Fatalf("remote failure must not fail the request: %d", w.Code)
	}
	if n := decode[models.Note](t, w); n.SyncStatus != models.StatusError {
		t.Errorf("status = %q, want error", n.SyncStatus)
	}
}

func TestCreateNoteInvalidBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRequireJSON(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("title=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", w.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	env := newTestEnv(t)
	big := strings.Repeat("x", DefaultMaxBody+1)
	w := env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: "big", Content: big})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestCreateNoteRejectsMalformedBodies(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		body string
		msg  string
	}{
		{"empty", "", "request body is empty"},
		{"trailing data", `{"title":"a"} {"title":"b"}`, "invalid JSON body"},
		{"wrong type", `{"title":1}`, "invalid JSON body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if got := decode[errResponse](t, w); got.Error != tc.msg {
				t.Errorf("error = %q, want %q", got.Error, tc.msg)
			}
		})
	}
	if notes, _ := env.eng.Notes(context.Background()); len(notes) != 0 {
		t.Errorf("rejected bodies created %d notes", len(notes))
	}
}

func TestResponsesNotCached(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/notes", "/status", "/notes/missing"} {
		method := http.MethodGet
		if path == "/notes/missing" {
			method = http.MethodDelete
		}
		w := env.do(t, method, path, nil)
		if got := w.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("%s %s Cache-Control = %q", method, path, got)
		}
	}
}

func TestUpdateNote(t *testing.T) {
	env := newTestEnv(t)
	created := decode[models.Note](t, env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: "A", Content: "B"}))

	w := env.do(t, http.MethodPut, "/notes/"+created.ID, map[string]string{"content": "C"})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	upd := decode[models.Note](t, w)
	if upd.Title != "A" || upd.Content != "C" {
		t.Errorf("merge wrong: %+v", upd)
	}
	if upd.UpdatedAt.Before(created.UpdatedAt) {
		t.Error("updatedAt moved backwards")
	}
}

func TestUpdateNoteNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPut, "/notes/missing", map[string]string{"title": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	list := decode[NoteListResponse](t, env.do(t, http.MethodGet, "/notes", nil))
	if list.Total != 0 {
		t.Error("failed update created a note")
	}
}

func TestDeleteNote(t *testing.T) {
	env := newTestEnv(t)
	created := decode[models.Note](t, env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: "A"}))

	if w := env.do(t, http.MethodDelete, "/notes/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/notes/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestListNotesOrderedAndFiltered(t *testing.T) {
	env := newTestEnv(t)
	for _, title := range []string{"first", "second", "third"} {
		env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: title, Content: "body " + title})
		time.Sleep(2 * time.Millisecond)
	}

	list := decode[NoteListResponse](t, env.do(t, http.MethodGet, "/notes", nil))
	if list.Total != 3 {
		t.Fatalf("total = %d", list.Total)
	}
	for i, want := range []string{"first", "second", "third"} {
		if list.Notes[i].Title != want {
			t.Errorf("notes[%d] = %q, want %q", i, list.Notes[i].Title, want)
		}
	}

	filtered := decode[NoteListResponse](t, env.do(t, http.MethodGet, "/notes?q=second", nil))
	if filtered.Total != 1 || filtered.Notes[0].Title != "second" {
		t.Errorf("filtered = %+v", filtered)
	}
}

func TestQueueAndManualSync(t *testing.T) {
	env := newTestEnv(t)
	a := decode[models.Note](t, env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: "a"}))
	env.do(t, http.MethodDelete, "/notes/"+a.ID, nil)

	q := decode[QueueResponse](t, env.do(t, http.MethodGet, "/queue", nil))
	if len(q.Operations) != 2 || q.Operations[0].Kind != models.OpCreate || q.Operations[1].Kind != models.OpDelete {
		t.Fatalf("queue = %+v", q.Operations)
	}

	w := env.do(t, http.MethodPost, "/sync", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("offline sync status = %d, want 503", w.Code)
	}

	env.eng.SetOnline(true)
	env.eng.Wait()

	w = env.do(t, http.MethodPost, "/sync", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decode[SyncResponse](t, w); res.Remaining != 0 {
		t.Errorf("remaining = %d", res.Remaining)
	}
	calls := env.srv.Calls()
	if len(calls) != 2 || calls[0].Method != http.MethodPost || calls[1].Method != http.MethodDelete {
		t.Errorf("remote calls = %+v", calls)
	}
}

func TestManualSyncHalts(t *testing.T) {
	env := newTestEnv(t)
	decode[models.Note](t, env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: "a"}))
	env.srv.SetFailing(true)
	env.eng.SetOnline(true)
	env.eng.Wait()

	w := env.do(t, http.MethodPost, "/sync", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	res := decode[SyncResponse](t, w)
	if res.Remaining != 1 || res.Error == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestRemoteNotes(t *testing.T) {
	env := newTestEnv(t, syncengine.WithOnline(true))
	env.do(t, http.MethodPost, "/notes", CreateNoteRequest{Title: "a"})

	w := env.do(t, http.MethodGet, "/remote/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if list := decode[NoteListResponse](t, w); list.Total != 1 {
		t.Errorf("remote total = %d", list.Total)
	}

	env.srv.SetFailing(true)
	if w := env.do(t, http.MethodGet, "/remote/notes", nil); w.Code != http.StatusBadGateway {
		t.Errorf("failing remote status = %d, want 502", w.Code)
	}
}

func TestSSEEventsMounted(t *testing.T) {
	eng, _, _ := testutil.TestEngine(t)
	broker := sse.NewBroker(time.Second)
	defer broker.Close()
	router := NewRouter(eng, nil, broker)

	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	testutil.Eventually(t, time.Second, 10*time.Millisecond, func() bool {
		return broker.ClientCount() == 1
	}, "client not subscribed")

	broker.Notify(syncengine.Event{Kind: syncengine.EventNoteCreated, NoteID: "n1"})

	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if got := string(buf[:n]); !strings.Contains(got, "event: note.created") {
		t.Errorf("stream = %q", got)
	}
}

func TestRemoteNotesUnconfigured(t *testing.T) {
	eng, _, _ := testutil.TestEngine(t)
	router := NewRouter(eng, nil, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/remote/notes", nil))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", w.Code)
	}
}
