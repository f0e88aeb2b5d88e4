package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/flowloom/flowloom/internal/logging"
)

// ForeverScheduler re-runs a batch of configs on a recurring cron schedule
// (a feature this project adds beyond the one-shot scheduled_date/
// scheduled_time gate: a standing scheduler process that re-harvests on,
// say, "every day at 03:00"). It is a thin wrapper around *Scheduler —
// each firing is a full RunSequence.
type ForeverScheduler struct {
	Scheduler *Scheduler
	Logger    *logging.Logger
	cron      *cron.Cron
}

// NewForever wires a ForeverScheduler around an existing Scheduler.
func NewForever(sched *Scheduler, logger *logging.Logger) *ForeverScheduler {
	return &ForeverScheduler{Scheduler: sched, Logger: logger, cron: cron.New()}
}

// RunForever schedules configs to run on every firing of spec (a standard
// 5-field cron expression) and blocks until ctx is canceled.
func (f *ForeverScheduler) RunForever(ctx context.Context, spec string, configs []RunConfig) error {
	_, err := f.cron.AddFunc(spec, func() {
		if f.Logger != nil {
			f.Logger.Info("recurring batch firing", map[string]any{"spec": spec})
		}
		if err := f.Scheduler.RunSequence(ctx, configs); err != nil && f.Logger != nil {
			f.Logger.Warn("recurring batch run ended with an error", map[string]any{"error": err.Error()})
		}
	})
	if err != nil {
		return err
	}

	f.cron.Start()
	<-ctx.Done()
	stopCtx := f.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
