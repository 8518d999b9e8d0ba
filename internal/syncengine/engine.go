// Package syncengine orchestrates note mutations between the local store and
// the remote note store.
//
// Every mutation is written to the local store first. When the engine is
// online it then attempts the matching remote call; when offline, or when the
// remote call fails, the operation is appended to a FIFO retry queue. The
// queue is drained in order on every transition to online and a failed entry
// halts the drain so the remote never observes operations out of order.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/offnote/internal/apperr"
	"github.com/starford/offnote/internal/models"
)

// DefaultRemoteTimeout bounds a single remote call when no timeout is configured.
const DefaultRemoteTimeout = 10 * time.Second

// drainLeaseTTL is renewed before every replayed entry, so it only has to
// outlast one remote call.
const drainLeaseTTL = 30 * time.Second

// Engine is the synchronization engine. It is the only writer of the Store.
type Engine struct {
	store  Store
	queue  Queue
	remote Remote

	logger        *slog.Logger
	notify        Notifier
	now           func() time.Time
	newID         func() string
	remoteTimeout time.Duration
	owner         string

	online   atomic.Bool
	draining atomic.Bool
	rerun    atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNotifier registers the event sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notify = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides note id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithRemoteTimeout bounds every remote call. Zero disables the bound.
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) { e.remoteTimeout = d }
}

// WithOnline sets the initial connectivity state without triggering a drain.
func WithOnline(online bool) Option {
	return func(e *Engine) { e.online.Store(online) }
}

// New creates an engine. A nil queue selects an in-memory queue.
func New(store Store, queue Queue, remote Remote, opts ...Option) *Engine {
	if queue == nil {
		queue = NewMemoryQueue()
	}
	e := &Engine{
		store:         store,
		queue:         queue,
		remote:        remote,
		logger:        slog.Default(),
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
		remoteTimeout: DefaultRemoteTimeout,
		owner:         uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Online reports the current connectivity flag.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// Draining reports whether a drain is in progress.
func (e *Engine) Draining() bool {
	return e.draining.Load()
}

// SetOnline records a connectivity transition. A transition to online starts
// exactly one background drain. Repeated calls with the same value are ignored.
// Going offline does not abort in-flight remote calls.
func (e *Engine) SetOnline(online bool) {
	if e.online.Swap(online) == online {
		return
	}
	e.logger.Info("sync: connectivity changed", slog.Bool("online", online))
	e.emit(Event{Kind: EventConnectivity, Online: online})
	if online {
		e.startDrain()
	}
}

func (e *Engine) startDrain() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_, err := e.SyncChanges(e.ctx)
		switch {
		case errors.Is(err, apperr.ErrDrainInProgress):
			e.logger.Debug("sync: drain already running", slog.String("owner", e.owner))
		case errors.Is(err, apperr.ErrOffline):
			e.logger.Debug("sync: went offline before drain started")
		}
	}()
}

// Wait blocks until background drains started so far have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels background drains and waits for them to return.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// Notes returns every note ordered by updatedAt ascending.
func (e *Engine) Notes(ctx context.Context) ([]models.Note, error) {
	notes, err := e.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: list: %w", err)
	}
	return notes, nil
}

// Search filters notes by a substring of title or content. Stores without
// search support are filtered in memory.
func (e *Engine) Search(ctx context.Context, query string) ([]models.Note, error) {
	if s, ok := e.store.(Searcher); ok {
		notes, err := s.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("syncengine: search: %w", err)
		}
		return notes, nil
	}
	all, err := e.Notes(ctx)
	if err != nil {
		return nil, err
	}
	return filterNotes(all, query), nil
}

// Pending returns the queued operations in FIFO order.
func (e *Engine) Pending(ctx context.Context) ([]models.PendingOp, error) {
	ops, err := e.queue.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: pending: %w", err)
	}
	return ops, nil
}

// Status is a snapshot of engine state for display.
type Status struct {
	Online   bool `json:"online"`
	Pending  int  `json:"pending"`
	Draining bool `json:"draining"`
}

// Status returns the connectivity flag and queue depth.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	n, err := e.queue.Len(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("syncengine: status: %w", err)
	}
	return Status{Online: e.Online(), Pending: n, Draining: e.Draining()}, nil
}

// CreateNote stores a new note and replicates it when online.
// Remote failures are never returned; they show up as status error.
func (e *Engine) CreateNote(ctx context.Context, title, content string) (models.Note, error) {
	ctx = context.WithoutCancel(ctx)

	n := models.Note{
		ID:         e.newID(),
		Title:      title,
		Content:    content,
		UpdatedAt:  e.now(),
		SyncStatus: models.StatusUnsynced,
	}
	if err := e.store.Put(ctx, n); err != nil {
		return models.Note{}, fmt.Errorf("syncengine: create: %w", err)
	}
	e.emit(Event{Kind: EventNoteCreated, NoteID: n.ID, Status: n.SyncStatus, Online: e.Online()})

	return e.replicate(ctx, models.OpCreate, n)
}

// UpdateNote merges upd over the stored note and replicates it when online.
// It fails with apperr.ErrNotFound when id is absent.
func (e *Engine) UpdateNote(ctx context.Context, id string, upd models.NoteUpdate) (models.Note, error) {
	ctx = context.WithoutCancel(ctx)

	existing, err := e.store.Get(ctx, id)
	if err != nil {
		return models.Note{}, fmt.Errorf("syncengine: update %s: %w", id, err)
	}

	n := upd.Apply(*existing)
	n.ID = existing.ID
	n.UpdatedAt = e.stamp(existing.UpdatedAt)
	n.SyncStatus = models.StatusUnsynced
	if err := e.store.Put(ctx, n); err != nil {
		return models.Note{}, fmt.Errorf("syncengine: update %s: %w", id, err)
	}
	e.emit(Event{Kind: EventNoteUpdated, NoteID: n.ID, Status: n.SyncStatus, Online: e.Online()})

	return e.replicate(ctx, models.OpUpdate, n)
}

// DeleteNote removes the note locally and replicates the delete when online.
// It fails with apperr.ErrNotFound when id is absent.
func (e *Engine) DeleteNote(ctx context.Context, id string) error {
	ctx = context.WithoutCancel(ctx)

	snapshot, err := e.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("syncengine: delete %s: %w", id, err)
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("syncengine: delete %s: %w", id, err)
	}
	e.emit(Event{Kind: EventNoteDeleted, NoteID: id, Online: e.Online()})

	direct, err := e.canSendDirect(ctx, id)
	if err != nil {
		return err
	}
	if !direct {
		_, err := e.enqueue(ctx, models.OpDelete, *snapshot)
		return err
	}

	if err := e.callDelete(ctx, id); err != nil {
		e.logger.Warn("sync: remote delete failed, queued for retry",
			slog.String("id", id), slog.String("error", err.Error()))
		_, qerr := e.enqueue(ctx, models.OpDelete, *snapshot)
		return qerr
	}
	return nil
}

// replicate runs the online/offline branch shared by create and update.
// n has already been persisted as unsynced.
func (e *Engine) replicate(ctx context.Context, kind models.OpKind, n models.Note) (models.Note, error) {
	direct, err := e.canSendDirect(ctx, n.ID)
	if err != nil {
		return models.Note{}, err
	}
	if !direct {
		return e.enqueue(ctx, kind, n)
	}

	syncing := n.WithStatus(models.StatusSyncing)
	if err := e.putStatus(ctx, syncing); err != nil {
		return models.Note{}, err
	}

	remoteNote, err := e.callWrite(ctx, kind, syncing)
	if err != nil {
		e.logger.Warn("sync: remote "+string(kind)+" failed, queued for retry",
			slog.String("id", n.ID), slog.String("error", err.Error()))
		failed := n.WithStatus(models.StatusError)
		if err := e.putStatus(ctx, failed); err != nil {
			return models.Note{}, err
		}
		return e.enqueue(ctx, kind, failed)
	}

	final := merge(n, remoteNote).WithStatus(models.StatusSynced)
	if err := e.putStatus(ctx, final); err != nil {
		return models.Note{}, err
	}
	return final, nil
}

// canSendDirect reports whether a mutation of noteID may go straight to the
// remote. Offline, or with an older operation for the same note still queued,
// it must go through the queue to keep per-note order.
func (e *Engine) canSendDirect(ctx context.Context, noteID string) (bool, error) {
	if !e.Online() {
		return false, nil
	}
	pending, err := e.queue.HasPending(ctx, noteID)
	if err != nil {
		return false, fmt.Errorf("syncengine: queue lookup: %w", err)
	}
	return !pending, nil
}

func (e *Engine) enqueue(ctx context.Context, kind models.OpKind, n models.Note) (models.Note, error) {
	op, err := e.queue.Enqueue(ctx, models.PendingOp{Kind: kind, Note: n, EnqueuedAt: e.now()})
	if err != nil {
		return models.Note{}, fmt.Errorf("syncengine: enqueue %s %s: %w", kind, n.ID, err)
	}
	e.logger.Debug("sync: queued", slog.Int64("seq", op.Seq), slog.String("kind", string(kind)), slog.String("id", n.ID))
	return n, nil
}

func (e *Engine) putStatus(ctx context.Context, n models.Note) error {
	if err := e.store.Put(ctx, n); err != nil {
		return fmt.Errorf("syncengine: persist %s: %w", n.ID, err)
	}
	e.emit(Event{Kind: EventNoteStatus, NoteID: n.ID, Status: n.SyncStatus, Online: e.Online()})
	return nil
}

func (e *Engine) callWrite(ctx context.Context, kind models.OpKind, n models.Note) (models.Note, error) {
	ctx, cancel := e.remoteContext(ctx)
	defer cancel()
	switch kind {
	case models.OpCreate:
		return e.remote.Create(ctx, n)
	case models.OpUpdate:
		return e.remote.Update(ctx, n.ID, n)
	}
	return models.Note{}, fmt.Errorf("syncengine: unexpected write kind %q", kind)
}

func (e *Engine) callDelete(ctx context.Context, id string) error {
	ctx, cancel := e.remoteContext(ctx)
	defer cancel()
	return e.remote.Delete(ctx, id)
}

func (e *Engine) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.remoteTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.remoteTimeout)
}

// stamp returns a timestamp that never precedes prev.
func (e *Engine) stamp(prev time.Time) time.Time {
	now := e.now()
	if now.Before(prev) {
		return prev
	}
	return now
}

func (e *Engine) emit(ev Event) {
	if e.notify != nil {
		e.notify(ev)
	}
}

// merge overlays the remote representation on the local note. The local id
// and updatedAt are kept; an empty remote body leaves the note unchanged.
func merge(local, remote models.Note) models.Note {
	if remote.ID == "" {
		return local
	}
	local.Title = remote.Title
	local.Content = remote.Content
	return local
}
