// Package jobs runs the lending service's background work.
package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// Sweeper runs one overdue sweep.
type Sweeper interface {
	MarkOverdueInstallments(ctx context.Context) (domain.SweepResult, error)
}

// OverdueJob periodically marks past-due installments as overdue.
type OverdueJob struct {
	sweeper  Sweeper
	interval time.Duration
	log      logrus.FieldLogger
}

// NewOverdueJob creates a job that sweeps every interval.
func NewOverdueJob(sweeper Sweeper, interval time.Duration, log logrus.FieldLogger) *OverdueJob {
	return &OverdueJob{sweeper: sweeper, interval: interval, log: log.WithField("job", "overdue-sweep")}
}

// Run sweeps once right away and then on every tick until ctx is cancelled.
// A failed sweep is logged and retried on the next tick.
func (j *OverdueJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.log.WithField("interval", j.interval.String()).Info("overdue sweep job started")
	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			j.log.Info("overdue sweep job stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *OverdueJob) sweep(ctx context.Context) {
	start := time.Now()
	result, err := j.sweeper.MarkOverdueInstallments(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.log.WithError(err).Error("overdue sweep failed")
		}
		return
	}

	entry := j.log.WithFields(logrus.Fields{
		"installments": result.Installments,
		"loans":        result.Loans,
		"duration":     time.Since(start).String(),
	})
	if result.Installments > 0 {
		entry.Info("overdue sweep marked installments")
	} else {
		entry.Debug("overdue sweep found nothing")
	}
}
