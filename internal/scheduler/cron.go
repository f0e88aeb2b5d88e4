package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

const scheduledDateLayout = "2006-01-02"
const scheduledTimeLayout = "15:04:05"

// computeScheduledStart resolves a RunConfig's {scheduled_date,
// scheduled_time} into an absolute time.Time (spec §4.9): a missing date
// defaults to now's date, a missing time defaults to midnight. If the
// resolved instant has already passed, the run starts immediately and a
// warning is returned for the caller to log.
func computeScheduledStart(cfg RunConfig, now time.Time) (time.Time, string, error) {
	if cfg.ScheduledDate == "" && cfg.ScheduledTime == "" {
		return now, "", nil
	}

	date := cfg.ScheduledDate
	if date == "" {
		date = now.Format(scheduledDateLayout)
	}
	clock := cfg.ScheduledTime
	if clock == "" {
		clock = "00:00:00"
	}

	t, err := time.ParseInLocation(scheduledDateLayout+" "+scheduledTimeLayout, date+" "+clock, now.Location())
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse scheduled start: %w", err)
	}

	if t.Before(now) {
		return now, fmt.Sprintf("scheduled start %s has already passed; starting immediately", t.Format(time.RFC3339)), nil
	}
	return t, "", nil
}

// gateOnSchedule blocks until target, using a one-shot gocron job to signal
// the moment rather than a bare time.Sleep. It polls
// controlPoll at the given interval so an interactive stop/pause request
// is observed during a long wait rather than only at the end.
func gateOnSchedule(ctx context.Context, target time.Time, pollInterval time.Duration, controlPoll func() (stop bool)) error {
	if !target.After(time.Now()) {
		return nil
	}

	sched := gocron.NewScheduler(time.Local)
	fired := make(chan struct{})
	if _, err := sched.Every(1).Day().StartAt(target).LimitRunsTo(1).Do(func() { close(fired) }); err != nil {
		return fmt.Errorf("schedule start gate: %w", err)
	}
	sched.StartAsync()
	defer sched.Stop()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fired:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if controlPoll != nil && controlPoll() {
				return errStopRequestedDuringWait
			}
		}
	}
}
