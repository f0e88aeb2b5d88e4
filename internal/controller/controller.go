// Package controller implements the cooperative lifecycle state machine
// (C3) shared by the execution engine and the scheduler: start/pause/
// resume/stop/emergency-stop, plus checkpoint save/load.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/flowloom/flowloom/internal/logging"
)

// State is one of the Controller's lifecycle states.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StatePaused   State = "PAUSED"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
)

// Checkpoint is a persisted snapshot of an execution context, portable
// across runs. ResultSoFar is left as raw JSON so this package does not
// need to import workflow's result types (workflow imports controller, not
// the reverse).
type Checkpoint struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	WorkflowName string          `json:"workflow"`
	ActionIndex  int             `json:"actionIndex"`
	Variables    map[string]any  `json:"variables"`
	ResultSoFar  json.RawMessage `json:"partialResults,omitempty"`
}

// Controller is the cooperative lifecycle state machine driving one
// ExecutionEngine run. Stop supersedes pause: if both are pending the
// engine must observe stop (spec §4.2, "ordering").
type Controller struct {
	mu    sync.Mutex
	state State

	pauseCond *sync.Cond
	paused    bool

	stopRequested atomic.Bool
	emergency     atomic.Bool

	startTime    time.Time
	totalActions atomic.Int64
	generation   atomic.Int64

	checkpointDir string
	logger        *logging.Logger
}

// New creates an IDLE Controller. checkpointDir may be empty, in which case
// SaveCheckpoint only returns the Checkpoint value (callers persist it
// themselves), LoadCheckpoint returns an error and ListCheckpoints returns nil.
func New(checkpointDir string, logger *logging.Logger) *Controller {
	c := &Controller{
		state:         StateIdle,
		checkpointDir: checkpointDir,
		logger:        logger,
	}
	c.pauseCond = sync.NewCond(&c.mu)
	return c
}

// Start transitions IDLE->RUNNING, recording the start time and action
// count. Returns false if the controller was not IDLE.
func (c *Controller) Start(totalActions int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return false
	}
	c.state = StateRunning
	c.startTime = time.Now()
	c.totalActions.Store(int64(totalActions))
	c.stopRequested.Store(false)
	c.emergency.Store(false)
	return true
}

// Reset returns a STOPPED (or IDLE) controller to IDLE so Start can be
// called again. Used by long-lived callers that drive many independent
// runs through one Controller instance (the scheduler's recurring batch
// mode) rather than constructing a fresh Controller per run.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.paused = false
	c.stopRequested.Store(false)
	c.emergency.Store(false)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestPause transitions RUNNING->PAUSED. No-op if not RUNNING.
func (c *Controller) RequestPause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}
	c.state = StatePaused
	c.paused = true
}

// RequestResume transitions PAUSED->RUNNING and wakes any goroutine blocked
// in AwaitResume.
func (c *Controller) RequestResume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return
	}
	c.state = StateRunning
	c.paused = false
	c.pauseCond.Broadcast()
}

// RequestStop sets the stop flag; emergency additionally sets the
// emergency flag, which callers consult to bypass any grace window or
// abort a pending driver call. Also transitions RUNNING/PAUSED -> STOPPING
// and wakes any paused waiter so it observes the stop instead of blocking
// forever.
func (c *Controller) RequestStop(emergency bool) {
	c.stopRequested.Store(true)
	if emergency {
		c.emergency.Store(true)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning || c.state == StatePaused {
		c.state = StateStopping
	}
	c.paused = false
	c.pauseCond.Broadcast()
}

// MarkStopped transitions STOPPING->STOPPED after the engine has finished
// unwinding and tearing down the browser. Idempotent.
func (c *Controller) MarkStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateStopped
}

// CheckShouldStop reports whether a stop has been requested. Consulted by
// the engine at every suspension point (spec §5).
func (c *Controller) CheckShouldStop() bool {
	return c.stopRequested.Load()
}

// IsEmergency reports whether the pending stop is an emergency stop.
func (c *Controller) IsEmergency() bool {
	return c.emergency.Load()
}

// AwaitResume blocks while the controller is PAUSED, returning immediately
// if a stop is requested (stop supersedes pause) or if ctx is canceled.
// This is the engine's pause suspension point (spec §4.4, "await
// controller.await_resume()").
func (c *Controller) AwaitResume(ctx context.Context) error {
	if c.CheckShouldStop() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		c.mu.Lock()
		for c.paused && !c.stopRequested.Load() {
			c.pauseCond.Wait()
		}
		c.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Elapsed returns the time since Start was called.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}

// TotalActions returns the action count recorded at Start.
func (c *Controller) TotalActions() int64 {
	return c.totalActions.Load()
}

// Generation returns a monotonically increasing counter bumped on every
// SaveCheckpoint, letting callers detect stale checkpoint references.
func (c *Controller) Generation() int64 {
	return c.generation.Load()
}

// SaveCheckpoint builds and optionally persists a Checkpoint. If the
// controller has a checkpointDir, the checkpoint is written as
// <checkpointDir>/<id>.json; otherwise only the in-memory value is
// returned and the caller is responsible for persistence.
func (c *Controller) SaveCheckpoint(workflowName string, actionIndex int, vars map[string]any, resultSoFar any) (*Checkpoint, error) {
	c.generation.Add(1)

	raw, err := json.Marshal(resultSoFar)
	if err != nil {
		return nil, fmt.Errorf("marshal partial results: %w", err)
	}

	cp := &Checkpoint{
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		WorkflowName: workflowName,
		ActionIndex:  actionIndex,
		Variables:    vars,
		ResultSoFar:  raw,
	}

	if c.checkpointDir == "" {
		return cp, nil
	}

	if err := os.MkdirAll(c.checkpointDir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	body, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}
	path := filepath.Join(c.checkpointDir, cp.ID+".json")
	if err := os.WriteFile(path, body, 0644); err != nil {
		return nil, fmt.Errorf("write checkpoint: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("checkpoint saved", map[string]any{"id": cp.ID, "workflow": workflowName, "action_index": actionIndex})
	}

	return cp, nil
}

// LoadCheckpoint reads a previously saved checkpoint by id.
func (c *Controller) LoadCheckpoint(id string) (*Checkpoint, error) {
	if c.checkpointDir == "" {
		return nil, fmt.Errorf("controller has no checkpoint directory configured")
	}
	path := filepath.Join(c.checkpointDir, id+".json")
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", id, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(body, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

// ListCheckpoints returns the ids of all checkpoints on disk, newest file
// first (used by controlapi's GET /checkpoints).
func (c *Controller) ListCheckpoints() ([]string, error) {
	if c.checkpointDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(c.checkpointDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	modTimes := map[string]time.Time{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		id := name[:len(name)-len(filepath.Ext(name))]
		if info, err := e.Info(); err == nil {
			modTimes[id] = info.ModTime()
		}
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool { return modTimes[ids[i]].After(modTimes[ids[j]]) })
	return ids, nil
}
