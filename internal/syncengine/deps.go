package syncengine

import (
	"context"
	"time"

	"github.com/starford/offnote/internal/models"
)

// Store is the durable note persistence the engine writes through.
type Store interface {
	GetAll(ctx context.Context) ([]models.Note, error)
	// Get returns an error wrapping apperr.ErrNotFound when id is absent.
	Get(ctx context.Context, id string) (*models.Note, error)
	Put(ctx context.Context, n models.Note) error
	Delete(ctx context.Context, id string) error
}

// Searcher is implemented by stores that can filter notes by substring.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Note, error)
}

// Queue is the FIFO retry queue of pending remote operations.
type Queue interface {
	Enqueue(ctx context.Context, op models.PendingOp) (models.PendingOp, error)
	// Head returns nil when the queue is empty.
	Head(ctx context.Context) (*models.PendingOp, error)
	Remove(ctx context.Context, seq int64) error
	Pending(ctx context.Context) ([]models.PendingOp, error)
	Len(ctx context.Context) (int, error)
	HasPending(ctx context.Context, noteID string) (bool, error)
}

// DrainLock is implemented by queues that several processes can share. Only
// the holder of the lease drains; the others treat the queue as busy.
type DrainLock interface {
	AcquireDrain(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	ReleaseDrain(ctx context.Context, owner string) error
}

// Remote is the network-facing note store.
type Remote interface {
	Create(ctx context.Context, n models.Note) (models.Note, error)
	Update(ctx context.Context, id string, n models.Note) (models.Note, error)
	Delete(ctx context.Context, id string) error
}
