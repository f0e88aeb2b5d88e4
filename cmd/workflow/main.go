// Command workflow runs a single AutomationConfig end to end (C5), the
// process the scheduler shells out to for each scheduled run (spec §4.9).
// Adapted from the teacher's cmd/Crepes/main.go flag-parsing and graceful-
// shutdown idiom, generalized from "serve the Crepes web UI" to "run one
// workflow and exit", with subcommands in place of the teacher's single
// entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/config"
	"github.com/flowloom/flowloom/internal/controlapi"
	"github.com/flowloom/flowloom/internal/controller"
	"github.com/flowloom/flowloom/internal/generation"
	"github.com/flowloom/flowloom/internal/logging"
	"github.com/flowloom/flowloom/internal/sysinfo"
	"github.com/flowloom/flowloom/internal/workflow"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "validate":
		os.Exit(validateCommand(os.Args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: workflow <run|validate> <config.yaml|config.json> [flags]")
}

func validateCommand(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		usage()
		return 2
	}

	cfg, err := workflow.LoadAutomationConfig(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if _, err := workflow.ValidateConfig(cfg, workflow.NewDefaultRegistry()); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}
	fmt.Println("config valid:", cfg.Name)
	return 0
}

func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	appConfigPath := fs.String("app-config", "config.json", "path to the runtime AppConfig file")
	headlessOverride := fs.Bool("headless", false, "force headless mode, overriding the workflow config's headless field")
	controlAddr := fs.String("control-api", "", "address to serve the control API on while this run executes (e.g. :8733); empty disables it")
	fs.Parse(args)

	headlessFlagSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			headlessFlagSet = true
		}
	})

	if fs.NArg() < 1 {
		usage()
		return 2
	}
	configPath := fs.Arg(0)

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

	cfg, err := workflow.LoadAutomationConfig(configPath)
	if err != nil {
		fmt.Printf("RuntimeError: load automation config: %v\n", err)
		return 1
	}

	report := sysinfo.Run()
	for _, w := range report.Warnings {
		logger.Warn("preflight warning", map[string]any{"warning": w})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	headless := cfg.Headless
	if headlessFlagSet {
		headless = *headlessOverride
	}
	driver, err := browser.NewChromeDriver(ctx, browser.Options{Headless: headless}, logger)
	if err != nil {
		fmt.Printf("RuntimeError: launch browser: %v\n", err)
		return 1
	}
	defer driver.Close()

	ctl := controller.New(appCfg.CheckpointDir, logger)
	genAdapter := generation.NewAdapter(driver, logger)

	rt := &workflow.Runtime{
		Driver:     driver,
		Logger:     logger,
		Config:     appCfg,
		Generation: genAdapter,
	}
	engine := workflow.NewEngine(workflow.NewDefaultRegistry(), ctl, rt)

	if *controlAddr != "" {
		srv := controlapi.New(ctl, logger)
		srv.GenerationStatus = func() workflow.GenerationStatus { return genAdapter.Status() }
		go func() {
			if err := srv.ListenAndServe(*controlAddr); err != nil {
				logger.Warn("control api stopped", map[string]any{"error": err.Error()})
			}
		}()
	}

	go func() {
		<-ctx.Done()
		ctl.RequestStop(false)
	}()

	ec := workflow.NewExecutionContext(cfg.Name, nil)
	start := time.Now()
	result, err := engine.Run(ctx, cfg, ec)
	elapsed := time.Since(start)

	if err != nil {
		fmt.Printf("RuntimeError: %v\n", err)
		logger.Error("workflow run failed", map[string]any{"error": err.Error()})
		return 1
	}

	logger.Info("workflow run finished", map[string]any{
		"name": cfg.Name, "actions_executed": result.ActionsExecuted,
		"stopped": result.Stopped, "elapsed": elapsed.String(),
	})

	if result.Stopped {
		if result.Emergency {
			fmt.Println("Automation stopped: emergency stop requested")
		} else {
			fmt.Println("Automation stopped: stop requested")
		}
		return 1
	}
	if !result.Success {
		fmt.Printf("RuntimeError: %d action error(s)\n", len(result.Errors))
		return 1
	}

	fmt.Printf("workflow %q completed: success (%d actions, %s, engine %s)\n", cfg.Name, result.ActionsExecuted, elapsed, version)
	return 0
}
