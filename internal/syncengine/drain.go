package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/offnote/internal/apperr"
	"github.com/starford/offnote/internal/models"
)

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Drained   int `json:"drained"`
	Remaining int `json:"remaining"`
}

// SyncChanges replays the retry queue against the remote in FIFO order while
// online. The first failing entry stops the pass: it and everything behind it
// stay queued and a *apperr.DrainError is returned. A call made while another
// drain is running returns apperr.ErrDrainInProgress without touching the queue;
// the running drain starts one more pass when it exits. The same error is
// returned when another process sharing the queue holds the drain lease.
// A call made while offline returns apperr.ErrOffline.
func (e *Engine) SyncChanges(ctx context.Context) (DrainResult, error) {
	if !e.Online() {
		n, err := e.queue.Len(ctx)
		if err != nil {
			return DrainResult{}, fmt.Errorf("syncengine: queue len: %w", err)
		}
		return DrainResult{Remaining: n}, apperr.ErrOffline
	}
	if !e.acquireDrain() {
		return DrainResult{}, apperr.ErrDrainInProgress
	}
	defer e.releaseDrain()

	lock, shared := e.queue.(DrainLock)
	if shared {
		ok, err := lock.AcquireDrain(ctx, e.owner, drainLeaseTTL)
		if err != nil {
			return DrainResult{}, fmt.Errorf("syncengine: drain lease: %w", err)
		}
		if !ok {
			return DrainResult{}, apperr.ErrDrainInProgress
		}
		defer func() {
			if err := lock.ReleaseDrain(context.WithoutCancel(ctx), e.owner); err != nil {
				e.logger.Warn("sync: release drain lease", slog.String("error", err.Error()))
			}
		}()
	}

	var res DrainResult
	for e.Online() {
		if err := ctx.Err(); err != nil {
			return e.finish(ctx, res, err)
		}
		if shared {
			ok, err := lock.AcquireDrain(ctx, e.owner, drainLeaseTTL)
			if err != nil {
				return e.finish(ctx, res, fmt.Errorf("syncengine: renew drain lease: %w", err))
			}
			if !ok {
				return e.finish(ctx, res, fmt.Errorf("syncengine: drain lease lost: %w", apperr.ErrDrainInProgress))
			}
		}
		op, err := e.queue.Head(ctx)
		if err != nil {
			return e.finish(ctx, res, fmt.Errorf("syncengine: queue head: %w", err))
		}
		if op == nil {
			break
		}

		if err := e.replay(ctx, *op); err != nil {
			return e.finish(ctx, res, &apperr.DrainError{
				Seq:    op.Seq,
				Kind:   string(op.Kind),
				NoteID: op.Note.ID,
				Err:    err,
			})
		}
		if err := e.queue.Remove(ctx, op.Seq); err != nil {
			return e.finish(ctx, res, fmt.Errorf("syncengine: dequeue %d: %w", op.Seq, err))
		}
		res.Drained++
		e.logger.Debug("sync: replayed", slog.Int64("seq", op.Seq),
			slog.String("kind", string(op.Kind)), slog.String("id", op.Note.ID))

		if op.Kind != models.OpDelete {
			e.reconcile(ctx, *op)
		}
	}
	return e.finish(ctx, res, nil)
}

// acquireDrain takes the in-process drain guard. A caller that finds a drain
// running leaves a rerun request, which that drain honors on exit.
func (e *Engine) acquireDrain() bool {
	if e.draining.CompareAndSwap(false, true) {
		return true
	}
	e.rerun.Store(true)
	// The running drain may have exited between the two steps.
	if e.draining.CompareAndSwap(false, true) {
		e.rerun.Store(false)
		return true
	}
	return false
}

func (e *Engine) releaseDrain() {
	e.draining.Store(false)
	if e.rerun.Swap(false) && e.Online() && e.ctx.Err() == nil {
		e.logger.Debug("sync: rerunning drain requested while busy")
		e.startDrain()
	}
}

func (e *Engine) finish(ctx context.Context, res DrainResult, err error) (DrainResult, error) {
	if n, lenErr := e.queue.Len(ctx); lenErr == nil {
		res.Remaining = n
	}
	if err != nil {
		e.logger.Error("sync: drain halted",
			slog.Int("drained", res.Drained),
			slog.Int("remaining", res.Remaining),
			slog.String("error", err.Error()))
		e.emit(Event{Kind: EventDrainFailed, Online: e.Online(), Drained: res.Drained, Remaining: res.Remaining, Error: err.Error()})
		return res, err
	}
	if res.Drained > 0 {
		e.logger.Info("sync: drain complete", slog.Int("drained", res.Drained), slog.Int("remaining", res.Remaining))
	}
	e.emit(Event{Kind: EventDrained, Online: e.Online(), Drained: res.Drained, Remaining: res.Remaining})
	return res, nil
}

func (e *Engine) replay(ctx context.Context, op models.PendingOp) error {
	switch op.Kind {
	case models.OpCreate, models.OpUpdate:
		_, err := e.callWrite(ctx, op.Kind, op.Note)
		return err
	case models.OpDelete:
		return e.callDelete(ctx, op.Note.ID)
	}
	return fmt.Errorf("unknown op kind %q", op.Kind)
}

// reconcile marks the local record synced after its queued write reached the
// remote, provided it was not modified since and nothing else is queued for it.
func (e *Engine) reconcile(ctx context.Context, op models.PendingOp) {
	pending, err := e.queue.HasPending(ctx, op.Note.ID)
	if err != nil || pending {
		return
	}
	local, err := e.store.Get(ctx, op.Note.ID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			e.logger.Warn("sync: reconcile lookup failed", slog.String("id", op.Note.ID), slog.String("error", err.Error()))
		}
		return
	}
	if !local.UpdatedAt.Equal(op.Note.UpdatedAt) || local.SyncStatus == models.StatusSynced {
		return
	}
	if err := e.putStatus(ctx, local.WithStatus(models.StatusSynced)); err != nil {
		e.logger.Warn("sync: reconcile failed", slog.String("id", op.Note.ID), slog.String("error", err.Error()))
	}
}

func filterNotes(notes []models.Note, query string) []models.Note {
	out := []models.Note{}
	for _, n := range notes {
		if n.Matches(query) {
			out = append(out, n)
		}
	}
	return out
}
