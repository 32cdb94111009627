package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/adrg/xdg"

	"github.com/bgurmendi/backintime/internal/config"
	"github.com/bgurmendi/backintime/internal/engine"
	"github.com/bgurmendi/backintime/internal/fs"
	"github.com/bgurmendi/backintime/internal/logging"
	"github.com/bgurmendi/backintime/internal/sched"
	"github.com/bgurmendi/backintime/internal/transfer"
)

const exitUsage = 4

// Argument handling is deliberately thin: a real frontend (GUI or a full
// CLI) drives the engine through the same packages this main does.
//
//	backintime run <profile> [config.yaml]
//	backintime daemon [config.yaml]
func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	switch args[0] {
	case "run":
		if len(args) < 2 {
			usage()
			return exitUsage
		}
		return runOnce(ctx, args[1], configPath(args, 2))

	case "daemon":
		return runDaemon(ctx, configPath(args, 1))

	default:
		usage()
		return exitUsage
	}
}

func runOnce(ctx context.Context, profileName, cfgPath string) int {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backintime: %v\n", err)
		return exitUsage
	}

	log := newLogger(cfg)

	profile, err := cfg.Profile(profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backintime: %v\n", err)
		return exitUsage
	}

	runner := engine.NewRunner(fs.New(), transfer.NewRsync(log), log)
	report := runner.Run(ctx, *profile)
	if report.Err != nil {
		log.Error("run failed", "outcome", report.Outcome.String(), "error", report.Err)
	}
	return report.Outcome.ExitCode()
}

func runDaemon(ctx context.Context, cfgPath string) int {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backintime: %v\n", err)
		return exitUsage
	}

	log := newLogger(cfg)

	runner := engine.NewRunner(fs.New(), transfer.NewRsync(log), log)
	daemon := sched.New(runner, log)

	// Hot reload: fsnotify on the config file, SIGHUP as fallback.
	go func() {
		if err := daemon.WatchConfig(ctx, cfgPath); err != nil {
			log.Warn("config watching unavailable, reload via SIGHUP only", "error", err)
		}
	}()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGHUP)
		for range sigCh {
			daemon.Reload(ctx, cfgPath)
		}
	}()

	if err := daemon.Start(ctx, cfg); err != nil {
		log.Error("daemon failed", "error", err)
		return exitUsage
	}
	return 0
}

func configPath(args []string, idx int) string {
	if len(args) > idx {
		return args[idx]
	}
	if env := os.Getenv("BACKINTIME_CONFIG"); env != "" {
		return env
	}
	if p, err := xdg.ConfigFile("backintime/config.yaml"); err == nil {
		return p
	}
	return "config.yaml"
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.Format(cfg.Logging.Format),
	})
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  backintime run <profile> [config.yaml]
  backintime daemon [config.yaml]

exit codes:
  0  backup finalized
  1  backup finalized with warnings
  2  another run holds the profile lock
  3  transfer failed, no usable snapshot produced
  4  configuration or usage error`)
}
