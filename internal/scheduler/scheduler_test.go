package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

type scriptedRunner struct {
	mu      sync.Mutex
	calls   []string
	outputs map[string][]string // configPath -> queue of canned stdouts
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{outputs: map[string][]string{}}
}

func (r *scriptedRunner) script(path string, outputs ...string) {
	r.outputs[path] = append(r.outputs[path], outputs...)
}

func (r *scriptedRunner) Run(ctx context.Context, configPath string) (string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, configPath)

	queue := r.outputs[configPath]
	if len(queue) == 0 {
		return "ran without incident", 1, nil
	}
	out := queue[0]
	r.outputs[configPath] = queue[1:]
	if out == "success" {
		return "run completed: success", 0, nil
	}
	return "attempt failed", 1, nil
}

func (r *scriptedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestRunSequenceRetriesThenSucceeds(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("a.json", "fail", "success")

	s := New(runner, nil)
	cfg := RunConfig{
		Name: "a", ConfigPath: "a.json", MaxRetries: 3,
		SuccessWaitTime: time.Millisecond, FailureWaitTime: time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.RunSequence(ctx, []RunConfig{cfg}); err != nil {
		t.Fatalf("RunSequence: %v", err)
	}
	if runner.callCount() != 2 {
		t.Fatalf("callCount = %d, want 2 (one failure, one success)", runner.callCount())
	}
}

func TestRunSequenceAdvancesAfterMaxRetriesExhausted(t *testing.T) {
	runner := newScriptedRunner()
	// a.json always fails; every attempt returns the zero-value "fail".
	runner.script("b.json", "success")

	s := New(runner, nil)
	configs := []RunConfig{
		{Name: "a", ConfigPath: "a.json", MaxRetries: 2, FailureWaitTime: time.Millisecond},
		{Name: "b", ConfigPath: "b.json", MaxRetries: 1, SuccessWaitTime: time.Millisecond},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.RunSequence(ctx, configs); err != nil {
		t.Fatalf("RunSequence: %v", err)
	}

	runner.mu.Lock()
	calls := append([]string{}, runner.calls...)
	runner.mu.Unlock()

	aCalls, bCalls := 0, 0
	for _, c := range calls {
		switch c {
		case "a.json":
			aCalls++
		case "b.json":
			bCalls++
		}
	}
	if aCalls != 2 {
		t.Fatalf("a.json called %d times, want 2 (MaxRetries)", aCalls)
	}
	if bCalls != 1 {
		t.Fatalf("b.json called %d times, want 1", bCalls)
	}
}

// stopAfterFirstRunner requests a stop on the Scheduler's own Controller as
// soon as the first config has run, so the second config in the batch must
// never execute.
type stopAfterFirstRunner struct {
	*scriptedRunner
	sched *Scheduler
}

func (r *stopAfterFirstRunner) Run(ctx context.Context, configPath string) (string, int, error) {
	out, code, err := r.scriptedRunner.Run(ctx, configPath)
	r.sched.Controller.RequestStop(false)
	return out, code, err
}

func TestRunSequenceStopsOnRequestBetweenConfigs(t *testing.T) {
	runner := &stopAfterFirstRunner{scriptedRunner: newScriptedRunner()}
	s := New(runner, nil)
	runner.sched = s
	runner.script("a.json", "success")

	configs := []RunConfig{
		{Name: "a", ConfigPath: "a.json", SuccessWaitTime: time.Millisecond},
		{Name: "b", ConfigPath: "b.json"},
	}

	err := s.RunSequence(context.Background(), configs)
	if err != ErrStopped {
		t.Fatalf("RunSequence err = %v, want ErrStopped", err)
	}
	if runner.callCount() != 1 {
		t.Fatalf("expected exactly one runner call before the stop landed, got %d", runner.callCount())
	}
}

func TestRunSequenceReusableAcrossCalls(t *testing.T) {
	runner := newScriptedRunner()
	runner.script("a.json", "success", "success")
	s := New(runner, nil)
	cfg := RunConfig{Name: "a", ConfigPath: "a.json", SuccessWaitTime: time.Millisecond}

	for i := 0; i < 2; i++ {
		if err := s.RunSequence(context.Background(), []RunConfig{cfg}); err != nil {
			t.Fatalf("RunSequence call %d: %v", i, err)
		}
	}
	if runner.callCount() != 2 {
		t.Fatalf("callCount = %d, want 2 across two RunSequence calls", runner.callCount())
	}
}
