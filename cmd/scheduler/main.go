// Command scheduler drives a batch of workflow configs through
// internal/scheduler (C10): retries, success/failure wait windows,
// scheduled start gating, and an optional recurring cron re-run of the
// whole batch. Adapted from the teacher's cmd/Crepes/main.go flag-parsing
// and signal-driven graceful-shutdown idiom.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/flowloom/flowloom/internal/config"
	"github.com/flowloom/flowloom/internal/controlapi"
	"github.com/flowloom/flowloom/internal/controller"
	"github.com/flowloom/flowloom/internal/logging"
	"github.com/flowloom/flowloom/internal/scheduler"
)

func main() {
	appConfigPath := flag.String("app-config", "config.json", "path to the runtime AppConfig file")
	batchPath := flag.String("batch", "", "path to the scheduler batch file (required)")
	workflowBinary := flag.String("workflow-binary", "workflow", "path to the workflow binary each scheduled run shells out to")
	every := flag.String("every", "", "optional cron expression (5-field) to re-run the whole batch on a recurring schedule")
	controlAddr := flag.String("control-api", "", "address to serve the control API on (e.g. :8733); empty disables it")
	flag.Parse()

	if *batchPath == "" {
		fmt.Fprintln(os.Stderr, "usage: scheduler -batch <batch.yaml> [-every \"<cron>\"] [-control-api :8733]")
		os.Exit(2)
	}

	appCfg, err := config.LoadConfig(*appConfigPath)
	if err != nil {
		log.Printf("WARNING: failed to load app config %s: %v, using defaults", *appConfigPath, err)
		appCfg = config.GetDefaultConfig()
	}
	if err := config.EnsureDirs(appCfg); err != nil {
		log.Printf("WARNING: failed to create configured directories: %v", err)
	}

	logger, err := logging.New(appCfg.LogDir, appCfg.MinLogLevel, true)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Close()

	configs, err := scheduler.LoadBatch(*batchPath)
	if err != nil {
		log.Fatalf("failed to load scheduler batch: %v", err)
	}
	if len(configs) == 0 {
		log.Fatalf("scheduler batch %s has no runs", *batchPath)
	}

	runner := &scheduler.ProcessRunner{Binary: *workflowBinary, Args: []string{"run", "-app-config", *appConfigPath}}
	sched := scheduler.New(runner, logger)

	if *controlAddr != "" {
		srv := controlapi.New(sched.Controller, logger)
		go func() {
			if err := srv.ListenAndServe(*controlAddr); err != nil {
				logger.Warn("control api stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	go listenForControlKeys(sched)

	logger.Info("scheduler starting", map[string]any{"batch": *batchPath, "runs": len(configs), "every": *every})

	if *every != "" {
		forever := scheduler.NewForever(sched, logger)
		if err := forever.RunForever(ctx, *every, configs); err != nil && err != context.Canceled {
			log.Fatalf("scheduler (recurring) exited with error: %v", err)
		}
		return
	}

	if err := sched.RunSequence(ctx, configs); err != nil && err != scheduler.ErrStopped && err != context.Canceled {
		log.Fatalf("scheduler run exited with error: %v", err)
	}
	logger.Info("scheduler finished", nil)
}

// listenForControlKeys reads single-line commands from stdin: "p" toggles
// pause/resume, "s" requests a stop, "x" requests an emergency stop. This
// is the scheduler's two interactive key-chords (spec §4.9), read a line at
// a time rather than in raw terminal mode — no pack dependency provides
// raw-mode keystroke capture, and a line-buffered read keeps this a plain
// bufio.Scanner loop over stdin.
func listenForControlKeys(sched *scheduler.Scheduler) {
	scan := bufio.NewScanner(os.Stdin)
	for scan.Scan() {
		switch strings.TrimSpace(scan.Text()) {
		case "p":
			if sched.Controller.State() == controller.StatePaused {
				sched.Controller.RequestResume()
			} else {
				sched.Controller.RequestPause()
			}
		case "s":
			sched.Controller.RequestStop(false)
		case "x":
			sched.Controller.RequestStop(true)
		}
	}
}
