package scheduler

import (
	"bytes"
	"context"
	"os/exec"
)

// WorkflowRunner executes one workflow config and reports its combined
// stdout/stderr and exit code, the inputs Classify needs (spec §4.9). The
// scheduler never links the execution engine in directly — each run is an
// independent process, so a runaway automation can't wedge the scheduler
// itself.
type WorkflowRunner interface {
	Run(ctx context.Context, configPath string) (stdout string, exitCode int, err error)
}

// ProcessRunner shells out to a `workflow run <configPath>`-shaped binary
// (cmd/workflow) per spec §4.9's description of a scheduled run as an
// external process whose stdout and exit code are inspected.
type ProcessRunner struct {
	// Binary is the path to the workflow CLI, e.g. "./workflow" or
	// "/usr/local/bin/flowloom-workflow".
	Binary string
	// Args are extra arguments inserted before the config path (e.g.
	// ["run"] for a multi-subcommand CLI).
	Args []string
}

// Run implements WorkflowRunner.
func (r ProcessRunner) Run(ctx context.Context, configPath string) (string, int, error) {
	args := append(append([]string{}, r.Args...), configPath)
	cmd := exec.CommandContext(ctx, r.Binary, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// Exit code already captured above; the classifier decides
			// based on stdout/exit code, not the Go error itself.
			return out.String(), exitCode, nil
		}
		return out.String(), exitCode, err
	}
	return out.String(), exitCode, nil
}
