package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/starford/offnote/internal/models"
)

// MemoryQueue is a process-local Queue. Entries are lost when the process exits.
type MemoryQueue struct {
	mu   sync.Mutex
	ops  []models.PendingOp
	next int64
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{next: 1}
}

func (q *MemoryQueue) Enqueue(_ context.Context, op models.PendingOp) (models.PendingOp, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op.Seq = q.next
	q.next++
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now().UTC()
	}
	q.ops = append(q.ops, op)
	return op, nil
}

func (q *MemoryQueue) Head(_ context.Context) (*models.PendingOp, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ops) == 0 {
		return nil, nil
	}
	op := q.ops[0]
	return &op, nil
}

func (q *MemoryQueue) Remove(_ context.Context, seq int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, op := range q.ops {
		if op.Seq == seq {
			q.ops = append(q.ops[:i], q.ops[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *MemoryQueue) Pending(_ context.Context) ([]models.PendingOp, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.PendingOp, len(q.ops))
	copy(out, q.ops)
	return out, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops), nil
}

func (q *MemoryQueue) HasPending(_ context.Context, noteID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range q.ops {
		if op.Note.ID == noteID {
			return true, nil
		}
	}
	return false, nil
}
