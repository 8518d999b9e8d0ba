// Package remotetest provides an in-memory remote note store for tests.
package remotetest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/offnote/internal/models"
)

// Call records one request received by the fake remote.
type Call struct {
	Method string
	NoteID string
}

// Server is a fake remote store speaking the /notes contract.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	notes    map[string]models.Note
	calls    []Call
	failing  bool
	failNext int
	failOn   map[Call]bool
	delay    time.Duration
}

// New starts a fake remote. Callers should defer Close.
func New() *Server {
	s := &Server{
		notes:  make(map[string]models.Note),
		failOn: make(map[Call]bool),
	}

	r := chi.NewRouter()
	r.Use(s.intercept)
	r.Get("/notes", s.list)
	r.Post("/notes", s.create)
	r.Put("/notes/{id}", s.update)
	r.Delete("/notes/{id}", s.delete)

	s.Server = httptest.NewServer(r)
	return s
}

// SetFailing makes every request fail with 503 until reset.
func (s *Server) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// FailNext makes the next n requests fail with 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// FailOn makes requests with the given method and note id fail with 503.
func (s *Server) FailOn(method, noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[Call{Method: method, NoteID: noteID}] = true
}

// SetDelay delays every response by d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns the mutating requests that reached the store, in order.
// Rejected requests are included.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Note returns the stored note for id.
func (s *Server) Note(id string) (models.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	return n, ok
}

// Len returns the number of stored notes.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := Call{Method: r.Method, NoteID: noteIDFromPath(r.URL.Path)}
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
			var probe struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(body, &probe)
			call.NoteID = probe.ID
		}

		s.mu.Lock()
		delay := s.delay
		fail := s.failing || s.failOn[call]
		if !fail && s.failNext > 0 {
			s.failNext--
			fail = true
		}
		if r.Method != http.MethodGet {
			s.calls = append(s.calls, call)
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if fail {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "remote unavailable"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func noteIDFromPath(p string) string {
	const prefix = "/notes/"
	if len(p) > len(prefix) && p[:len(prefix)] == prefix {
		return p[len(prefix):]
	}
	return ""
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var n models.Note
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	n.SyncStatus = ""
	s.mu.Lock()
	s.notes[n.ID] = n
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var n models.Note
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	n.ID = id
	n.SyncStatus = ""
	s.mu.Lock()
	s.notes[id] = n
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	delete(s.notes, id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
