// Package cmd implements the out-of-process crash handler. The handler
// watches the pending-report spool, ingests reports into the database,
// uploads them, and optionally serves a local collector endpoint.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/crashpad"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

var (
	databasePath string
	uploadURL    string
	listenAddr   string
	runOnce      bool
	maxReports   int
	logLevel     string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "crashguard-handler",
	Short: "Out-of-process crash report handler",
	Long: `crashguard-handler ingests pending crash reports written by a protected
process into the report database, uploads unsent reports, and prunes old
ones. It is normally spawned by the protected process and signals
readiness through a PID file in the database directory.

With --listen it additionally serves a local collector endpoint, the
development stand-in for a hosted crash backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runHandler,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().StringVar(&databasePath, "database", "",
		"report database directory (required)")
	rootCmd.Flags().StringVar(&uploadURL, "url", "",
		"upload endpoint; empty keeps reports local")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "",
		"serve a local collector endpoint on this address")
	rootCmd.Flags().BoolVar(&runOnce, "once", false,
		"run a single scan pass and exit")
	rootCmd.Flags().IntVar(&maxReports, "max-reports", 50,
		"retained report history; non-positive keeps everything")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")
	_ = rootCmd.MarkFlagRequired("database")
}

func runHandler(cmd *cobra.Command, _ []string) error {
	log := logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stderr,
	}).WithComponent("handler")

	db, err := crashpad.OpenDatabase(databasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	ingestor := crashpad.NewIngestor(db, databasePath, uploadURL, maxReports, log.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runOnce {
		return ingestor.Scan(ctx)
	}

	var srv *http.Server
	if listenAddr != "" {
		collector := crashpad.NewCollector(db, log.Logger)
		srv = &http.Server{
			Addr:              listenAddr,
			Handler:           collector.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("collector listening", "addr", listenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("collector failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := ingestor.WritePIDFile(); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer ingestor.RemovePIDFile()

	log.Info("handler ready", "database", databasePath, "pid", os.Getpid())

	if err := ingestor.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("handler stopped")
	return nil
}
