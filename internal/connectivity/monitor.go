// Package connectivity observes an online/offline signal and forwards
// transitions to the sync engine.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
)

// Handler receives connectivity transitions. *syncengine.Engine satisfies it.
type Handler interface {
	SetOnline(online bool)
}

// Source produces connectivity samples until ctx is cancelled. Samples may
// repeat; the Monitor deduplicates them.
type Source interface {
	Watch(ctx context.Context, report func(online bool)) error
}

// Monitor turns raw samples into transitions. The first sample is always
// forwarded so the handler starts from the observed state.
type Monitor struct {
	handler Handler
	logger  *slog.Logger

	mu     sync.Mutex
	known  bool
	online bool
}

// NewMonitor creates a monitor forwarding to h.
func NewMonitor(h Handler, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{handler: h, logger: logger}
}

// Observe records one sample and notifies the handler when it differs from
// the previous one.
func (m *Monitor) Observe(online bool) {
	m.mu.Lock()
	changed := !m.known || m.online != online
	m.known = true
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Debug("connectivity: transition", slog.Bool("online", online))
	m.handler.SetOnline(online)
}

// Online returns the last observed state and whether any sample was seen.
func (m *Monitor) Online() (online, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online, m.known
}

// Run feeds samples from src into the monitor until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, src Source) error {
	m.logger.Info("connectivity: monitor started")
	err := src.Watch(ctx, m.Observe)
	m.logger.Info("connectivity: monitor stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}
