package syncengine_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/starford/offnote/internal/apperr"
	"github.com/starford/offnote/internal/models"
)

// memStore is an in-memory Store that records every status it persists.
type memStore struct {
	mu      sync.Mutex
	notes   map[string]models.Note
	history map[string][]models.SyncStatus
	failPut error
}

func newMemStore() *memStore {
	return &memStore{
		notes:   make(map[string]models.Note),
		history: make(map[string][]models.SyncStatus),
	}
}

func (s *memStore) GetAll(_ context.Context) ([]models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, fmt.Errorf("memstore: %s: %w", id, apperr.ErrNotFound)
	}
	return &n, nil
}

func (s *memStore) Put(_ context.Context, n models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut != nil {
		return s.failPut
	}
	s.notes[n.ID] = n
	s.history[n.ID] = append(s.history[n.ID], n.SyncStatus)
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, id)
	return nil
}

func (s *memStore) statuses(id string) []models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SyncStatus(nil), s.history[id]...)
}

func (s *memStore) note(id string) (models.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	return n, ok
}

// fakeRemote records calls as "kind:id" and fails those listed in failOn.
type fakeRemote struct {
	mu      sync.Mutex
	calls   []string
	failOn  map[string]bool
	failAll bool
	block   chan struct{}
	started chan struct{}
	title   string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{failOn: make(map[string]bool)}
}

var errRemoteDown = errors.New("remote down")

func (r *fakeRemote) do(ctx context.Context, kind, id string) error {
	r.mu.Lock()
	r.calls = append(r.calls, kind+":"+id)
	fail := r.failAll || r.failOn[kind+":"+id]
	block, started := r.block, r.started
	r.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return &apperr.RemoteError{Op: kind, Err: ctx.Err()}
		}
	}
	if fail {
		return &apperr.RemoteError{Op: kind, StatusCode: 503, Err: errRemoteDown}
	}
	return nil
}

func (r *fakeRemote) Create(ctx context.Context, n models.Note) (models.Note, error) {
	if err := r.do(ctx, "create", n.ID); err != nil {
		return models.Note{}, err
	}
	return r.echo(n), nil
}

func (r *fakeRemote) Update(ctx context.Context, id string, n models.Note) (models.Note, error) {
	if err := r.do(ctx, "update", id); err != nil {
		return models.Note{}, err
	}
	return r.echo(n), nil
}

func (r *fakeRemote) Delete(ctx context.Context, id string) error {
	return r.do(ctx, "delete", id)
}

func (r *fakeRemote) echo(n models.Note) models.Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.SyncStatus = ""
	if r.title != "" {
		n.Title = r.title
	}
	return n
}

func (r *fakeRemote) setFailAll(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAll = v
}

func (r *fakeRemote) fail(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[call] = true
}

func (r *fakeRemote) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// sequentialIDs returns a generator yielding id-1, id-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}
