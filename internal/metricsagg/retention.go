// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metricsagg

import (
	"context"
	"time"

	"patronus.dev/core/internal/logging"
)

// RetentionStore is the subset of *store.Store the retention sweep
// needs — deleting rows older than a horizon, per §8 scenario S6.
type RetentionStore interface {
	DeletePathMetricsOlderThan(cutoff time.Time) (int64, error)
	DeleteSystemMetricsOlderThan(cutoff time.Time) (int64, error)
}

// Retention runs the periodic metrics-history cleanup sweep: every
// tick it deletes path_metrics and system_metrics rows older than
// horizon. Idempotent — re-running it against the same cutoff deletes
// nothing further.
type Retention struct {
	store   RetentionStore
	horizon time.Duration
	logger  *logging.Logger
}

// NewRetention builds a Retention sweeper deleting rows older than
// horizon on each Run tick.
func NewRetention(store RetentionStore, horizon time.Duration, logger *logging.Logger) *Retention {
	return &Retention{store: store, horizon: horizon, logger: logger}
}

// Run ticks Sweep every `every` until ctx is cancelled, performing an
// initial sweep immediately so a freshly started process doesn't wait
// a full tick before first enforcing the horizon.
func (r *Retention) Run(ctx context.Context, every time.Duration) error {
	if err := r.Sweep(); err != nil {
		r.logger.Error("metricsagg: retention sweep failed", "error", err)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Sweep(); err != nil {
				r.logger.Error("metricsagg: retention sweep failed", "error", err)
			}
		}
	}
}

// Sweep deletes every path_metrics/system_metrics row older than the
// configured retention horizon.
func (r *Retention) Sweep() error {
	cutoff := time.Now().Add(-r.horizon)

	pathDeleted, err := r.store.DeletePathMetricsOlderThan(cutoff)
	if err != nil {
		return err
	}
	sysDeleted, err := r.store.DeleteSystemMetricsOlderThan(cutoff)
	if err != nil {
		return err
	}

	if pathDeleted > 0 || sysDeleted > 0 {
		r.logger.Info("metricsagg: retention sweep complete", "path_rows", pathDeleted, "system_rows", sysDeleted, "cutoff", cutoff)
	}
	return nil
}
