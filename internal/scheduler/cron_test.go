package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestComputeScheduledStartNoScheduleRunsNow(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	got, warning, err := computeScheduledStart(RunConfig{}, now)
	if err != nil {
		t.Fatalf("computeScheduledStart: %v", err)
	}
	if !got.Equal(now) {
		t.Fatalf("got %v, want %v", got, now)
	}
	if warning != "" {
		t.Fatalf("unexpected warning: %q", warning)
	}
}

func TestComputeScheduledStartMissingDateDefaultsToToday(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	cfg := RunConfig{ScheduledTime: "23:00:00"}
	got, warning, err := computeScheduledStart(cfg, now)
	if err != nil {
		t.Fatalf("computeScheduledStart: %v", err)
	}
	want := time.Date(2026, 7, 30, 23, 0, 0, 0, now.Location())
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if warning != "" {
		t.Fatalf("unexpected warning for a future start: %q", warning)
	}
}

func TestComputeScheduledStartMissingTimeDefaultsToMidnight(t *testing.T) {
	now := time.Date(2026, 7, 30, 1, 0, 0, 0, time.UTC)
	cfg := RunConfig{ScheduledDate: "2026-08-01"}
	got, _, err := computeScheduledStart(cfg, now)
	if err != nil {
		t.Fatalf("computeScheduledStart: %v", err)
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, now.Location())
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestComputeScheduledStartPastTimeStartsImmediatelyWithWarning(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	cfg := RunConfig{ScheduledDate: "2026-07-29", ScheduledTime: "09:00:00"}
	got, warning, err := computeScheduledStart(cfg, now)
	if err != nil {
		t.Fatalf("computeScheduledStart: %v", err)
	}
	if !got.Equal(now) {
		t.Fatalf("got %v, want immediate start %v", got, now)
	}
	if !strings.Contains(warning, "already passed") {
		t.Fatalf("warning = %q, want mention of an already-passed start", warning)
	}
}

func TestGateOnScheduleReturnsImmediatelyForPastTarget(t *testing.T) {
	err := gateOnSchedule(context.Background(), time.Now().Add(-time.Hour), time.Millisecond, nil)
	if err != nil {
		t.Fatalf("gateOnSchedule: %v", err)
	}
}

func TestGateOnScheduleObservesStopDuringWait(t *testing.T) {
	target := time.Now().Add(2 * time.Second)
	polls := 0
	controlPoll := func() bool {
		polls++
		return polls >= 2 // stop on the second poll
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	err := gateOnSchedule(ctx, target, 20*time.Millisecond, controlPoll)
	elapsed := time.Since(start)

	if err != errStopRequestedDuringWait {
		t.Fatalf("gateOnSchedule err = %v, want errStopRequestedDuringWait", err)
	}
	if elapsed >= 2*time.Second {
		t.Fatalf("gateOnSchedule took %v, want it to return well before the 2s target via the stop poll", elapsed)
	}
}

func TestGateOnScheduleFiresAtTarget(t *testing.T) {
	target := time.Now().Add(100 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := gateOnSchedule(ctx, target, 10*time.Millisecond, func() bool { return false })
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("gateOnSchedule: %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Fatalf("gateOnSchedule returned after %v, want it to have waited roughly until the target", elapsed)
	}
}
