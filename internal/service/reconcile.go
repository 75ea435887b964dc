package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/parking-cession/internal/clock"
	"github.com/iliyamo/parking-cession/internal/model"
)

// Reconciler repairs cessions left behind when a sync write failed:
// an available cession whose spot is booked becomes reserved, and a
// reserved cession with no booking becomes available again.
type Reconciler struct {
	drift  DriftSource
	sync   CessionSyncer
	clock  clock.Clock
	logger *slog.Logger
}

func NewReconciler(drift DriftSource, sync CessionSyncer, clk clock.Clock, logger *slog.Logger) *Reconciler {
	return &Reconciler{drift: drift, sync: sync, clock: clk, logger: logger}
}

// Run calls RunOnce every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("reconcile failed", "error", err)
			}
		}
	}
}

// RunOnce repairs every drifted cession from today onward and returns
// how many were fixed.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	drifted, err := r.drift.ListDrifted(ctx, clock.Today(r.clock))
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, d := range drifted {
		from, to := model.CessionAvailable, model.CessionReserved
		switch {
		case d.Status == model.CessionAvailable && d.HasReservation:
		case d.Status == model.CessionReserved && !d.HasReservation:
			from, to = model.CessionReserved, model.CessionAvailable
		default:
			continue
		}
		changed, err := r.sync.Transition(ctx, d.SpotID, d.Date, from, to)
		if err != nil {
			r.logger.Warn("cession repair failed", "cession_id", d.ID, "error", err)
			continue
		}
		if changed {
			fixed++
			r.logger.Info("cession repaired",
				"cession_id", d.ID, "spot_id", d.SpotID, "date", model.DateKey(d.Date), "from", from, "to", to)
		}
	}
	return fixed, nil
}
