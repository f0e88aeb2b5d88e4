package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/flowloom/flowloom/internal/controller"
	"github.com/flowloom/flowloom/internal/logging"
)

// ErrStopped is returned by RunSequence when an interactive stop request
// ended the batch early.
var ErrStopped = errors.New("scheduler: stopped by request")

var errStopRequestedDuringWait = errors.New("scheduler: stop requested during wait")

const controlPollInterval = 200 * time.Millisecond

// Scheduler runs a sequence of workflow configs end to end, applying
// per-config retries and success/failure wait windows, and gating each
// config's start on its own scheduled_date/scheduled_time (spec §4.9,
// C10). Pause/stop is the same cooperative Controller the execution engine
// uses (C3), reused here rather than reinvented, so the same two
// interactive key-chords (pause/resume, stop) work identically whether
// they land mid-action or mid-wait.
type Scheduler struct {
	Runner     WorkflowRunner
	Logger     *logging.Logger
	Controller *controller.Controller
}

// New wires a Scheduler with its own Controller instance, independent of
// any Controller an individual workflow run creates internally (each
// WorkflowRunner invocation is a separate process).
func New(runner WorkflowRunner, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		Runner:     runner,
		Logger:     logger,
		Controller: controller.New("", logger),
	}
}

// RunSequence runs every config in order (spec §4.9's pseudocode):
//
//	for attempt in 1..max_retries:
//	  await controller; run workflow; classify result
//	  SUCCESS -> wait success_wait_time; advance to next config
//	  FAILURE & attempt < max_retries -> wait failure_wait_time; retry
//	  FAILURE & attempt == max_retries -> advance to next config
func (s *Scheduler) RunSequence(ctx context.Context, configs []RunConfig) error {
	if s.Controller.State() != controller.StateIdle {
		s.Controller.Reset()
	}
	s.Controller.Start(len(configs))

	for _, cfg := range configs {
		if s.Controller.CheckShouldStop() {
			s.Controller.MarkStopped()
			return ErrStopped
		}

		if err := s.awaitScheduledStart(ctx, cfg); err != nil {
			s.Controller.MarkStopped()
			return err
		}

		if err := s.runWithRetries(ctx, cfg); err != nil {
			s.Controller.MarkStopped()
			return err
		}
	}

	s.Controller.MarkStopped()
	return nil
}

func (s *Scheduler) runWithRetries(ctx context.Context, cfg RunConfig) error {
	maxRetries := cfg.effectiveMaxRetries()

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := s.Controller.AwaitResume(ctx); err != nil {
			return err
		}
		if s.Controller.CheckShouldStop() {
			return ErrStopped
		}

		stdout, exitCode, runErr := s.Runner.Run(ctx, cfg.ConfigPath)
		outcome := Classify(stdout, exitCode, runErr)

		if s.Logger != nil {
			s.Logger.Info("scheduled run finished", map[string]any{
				"config": cfg.Name, "attempt": attempt, "exit_code": exitCode, "outcome": outcome.String(),
			})
		}

		if outcome == Success {
			return s.interruptibleWait(ctx, cfg.SuccessWaitTime)
		}
		if attempt < maxRetries {
			if err := s.interruptibleWait(ctx, cfg.FailureWaitTime); err != nil {
				return err
			}
			continue
		}
		// Final attempt failed: per spec, advance to the next config
		// without an extra wait.
	}
	return nil
}

func (s *Scheduler) awaitScheduledStart(ctx context.Context, cfg RunConfig) error {
	target, warning, err := computeScheduledStart(cfg, time.Now())
	if err != nil {
		return err
	}
	if warning != "" && s.Logger != nil {
		s.Logger.Warn(warning, map[string]any{"config": cfg.Name})
	}

	err = gateOnSchedule(ctx, target, controlPollInterval, s.Controller.CheckShouldStop)
	if errors.Is(err, errStopRequestedDuringWait) {
		return ErrStopped
	}
	return err
}

// interruptibleWait blocks for d, returning early (with ErrStopped) if an
// interactive stop lands during the wait.
func (s *Scheduler) interruptibleWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if s.Controller.CheckShouldStop() {
			return ErrStopped
		}
		return nil
	}

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(controlPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.Controller.CheckShouldStop() {
				return ErrStopped
			}
		}
	}
}
