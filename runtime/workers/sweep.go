package workers

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"context"
	"log/slog"
	"time"
)

var _ contract.Worker = (*SweepWorker)(nil)

// SweepWorker flips inactive sessions to away on a fixed cadence.
//
// The sweep itself runs inside the registry's critical section, the same
// discipline as per-connection operations. The worker only reports the
// flips to the notify hook, it owns no sinks.
type SweepWorker struct {
	log      *slog.Logger
	interval time.Duration
	registry contract.IRegistry
	notify   func(domain.Session)
}

func NewSweepWorker(log *slog.Logger, interval time.Duration,
	registry contract.IRegistry, notify func(domain.Session)) *SweepWorker {
	return &SweepWorker{log: log, interval: interval, registry: registry, notify: notify}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case now := <-ticker.C:
			for _, session := range w.registry.SweepInactive(now) {
				w.notify(session)
			}
		}
	}
}
