package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/scribepad/scribe/internal/config"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run the sync engine continuously.

The daemon drains the outgoing queue on a timer, keeps the push channel to
the service open so edits from other devices land immediately, and probes
connectivity so queued work resumes as soon as the network returns. Edits to
the config file are picked up without a restart.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newDaemonLogger(cfg)

	a, err := openAppWithConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Hot reload: the pass interval is applied live; store and endpoint
	// changes need a restart.
	interval := cfg.SyncInterval
	if _, err := config.Watch(configPath, logger, func(next *config.Config) {
		if next.SyncInterval != interval {
			interval = next.SyncInterval
			a.engine.SetSyncInterval(interval)
		}
	}); err != nil {
		logger.Printf("WARNING: config watching disabled: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("daemon starting (data dir %s)", cfg.DataDir)

	if a.tokens.IsAuthenticated() {
		a.engine.HandleLogin()
		if err := a.engine.ForceFullSync(ctx); err != nil {
			logger.Printf("WARNING: initial full sync failed: %v", err)
		}
	} else {
		logger.Printf("no session token; run 'scribe login' to start syncing")
	}

	// Periodic connectivity probe; transitions start and stop the scheduler.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.engine.CheckHealth(ctx)
			}
		}
	}()

	<-ctx.Done()
	logger.Printf("daemon shutting down")
	a.engine.HandleLogout()
	return nil
}

// newDaemonLogger logs to the configured file with rotation, or stderr when
// no file is set.
func newDaemonLogger(cfg *config.Config) *log.Logger {
	var sink io.Writer = os.Stderr
	if cfg.LogFile != "" {
		sink = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		fmt.Fprintf(os.Stderr, "Logging to %s\n", cfg.LogFile)
	}
	return log.New(sink, "[scribe] ", log.LstdFlags)
}
