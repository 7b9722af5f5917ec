package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/crash"
	"github.com/hugo-lorenzo-mato/crashguard/internal/crashpad"
	"github.com/hugo-lorenzo-mato/crashguard/internal/engine"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a demo session under crash protection",
	Long: `Run a short demo session with a simulated engine under full crash
protection. Useful for exercising the report pipeline end to end.

Examples:
  # Clean session: breadcrumbs recorded, no report produced
  crashguard run

  # Simulate an unhandled panic (produces a report, aborts)
  crashguard run --fail panic

  # Simulate an engine fatal error
  crashguard run --fail fatal

  # Simulate a known benign fatal error (quiet exit, no report)
  crashguard run --fail known

  # Leave the engine active at exit (produces an AtExit report)
  crashguard run --fail at-exit`,
	RunE: runRun,
}

var runFail string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runFail, "fail", "none",
		"failure to simulate (none, panic, fatal, known, at-exit)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	log := logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stderr,
	})

	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	var backend *crashpad.Client
	if cfg.Crashpad.Enabled {
		backend = crashpad.NewClient(crashpad.Options{
			DatabasePath:   cfg.Crashpad.Database,
			UploadURL:      cfg.Crashpad.URL,
			HandlerPath:    cfg.Crashpad.HandlerPath,
			ExtraArguments: cfg.Crashpad.ExtraArguments,
			StartTimeout:   cfg.Crashpad.StartTimeout,
			Sanitize:       log.Sanitizer().SanitizeMap,
		}, log.Logger)
	}

	eng := engine.NewFake()
	manager := crash.NewManager(crash.Config{
		Product:              cfg.Product,
		KnownCrashSignatures: cfg.Crashes.KnownSignatures,
		UploadsEnabled:       cfg.Crashpad.UploadsEnabled,
	}, eng, backend, log.Logger)

	if err := manager.Initialize(cmdContext(cmd)); err != nil {
		// The host keeps running without protection.
		log.Warn("crash protection unavailable", "error", err)
	}
	defer func() { _ = manager.Close() }()
	defer manager.HandleExit()

	eng.Startup()
	manager.AddBreadcrumb("engine started")
	eng.Logs.AppendGeneral("demo session starting")

	manager.Protect(func() {
		simulateSession(manager, eng)
	})

	if runFail != "at-exit" {
		manager.AddBreadcrumb("engine shutting down")
		if err := eng.Shutdown(); err != nil {
			return fmt.Errorf("engine shutdown: %w", err)
		}
	}

	log.Info("session finished", "uptime", manager.Uptime().Round(time.Millisecond))
	return nil
}

// simulateSession plays a short engine session, optionally ending in one of
// the simulated failures.
func simulateSession(manager *crash.Manager, eng *engine.Fake) {
	manager.AddBreadcrumbf("scene loaded: %s", "main")
	eng.Allocate(3)
	eng.Logs.AppendWarning("encoder preset downgraded")
	manager.AddWarning("encoder preset downgraded")

	switch runFail {
	case "panic":
		panic("torn frame buffer in compositor")
	case "fatal":
		eng.RaiseFatal("device removed: %s", "dxgi adapter reset")
	case "known":
		eng.RaiseFatal("Failed to recreate D3D11")
	}

	eng.Release(3)
	manager.AddBreadcrumb("session complete")
}
