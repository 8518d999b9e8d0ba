package connectivity

import (
	"context"
	"log/slog"
	"time"
)

// Pinger checks whether the remote is reachable. *remote.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultProbeInterval is used when ProbeSource.Interval is zero.
const DefaultProbeInterval = 5 * time.Second

// ProbeSource samples connectivity by pinging the remote on an interval.
type ProbeSource struct {
	Pinger   Pinger
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Watch reports one sample immediately and one per tick.
func (p *ProbeSource) Watch(ctx context.Context, report func(bool)) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		online := p.sample(ctx, logger)
		if ctx.Err() != nil {
			return nil
		}
		report(online)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *ProbeSource) sample(ctx context.Context, logger *slog.Logger) bool {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	if err := p.Pinger.Ping(ctx); err != nil {
		logger.Debug("connectivity: probe failed", slog.String("error", err.Error()))
		return false
	}
	return true
}
