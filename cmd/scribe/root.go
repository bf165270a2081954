package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scribepad/scribe/internal/auth"
	"github.com/scribepad/scribe/internal/config"
	"github.com/scribepad/scribe/internal/queue"
	"github.com/scribepad/scribe/internal/remote"
	"github.com/scribepad/scribe/internal/store/sqlite"
	syncpkg "github.com/scribepad/scribe/internal/sync"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Offline-first sync client for scribepad notes",
	Long: `scribe keeps a local note database in sync with the scribepad service.

Every change is written locally first and queued for delivery. The daemon
drains the queue on a timer and listens for changes pushed by your other
devices; the one-shot commands do the same work on demand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: scribe.yaml in the data dir)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(clearErrorsCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(noteCmd)
}

// app bundles everything a command needs to operate on the sync engine.
type app struct {
	cfg    *config.Config
	store  *sqlite.Store
	queue  *queue.Manager
	tokens *auth.TokenHolder
	engine *syncpkg.Engine
	logger *log.Logger
}

// openApp wires the full stack from the loaded config: sqlite store, queue
// with durable snapshots, remote client with the stored session token, and
// the engine on top.
func openApp(logger *log.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return openAppWithConfig(cfg, logger)
}

func openAppWithConfig(cfg *config.Config, logger *log.Logger) (*app, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[scribe] ", log.LstdFlags)
	}

	st, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open note database: %w", err)
	}

	persist, err := queue.NewFileStore(cfg.QueueDir(), logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open queue storage: %w", err)
	}

	qcfg := queue.DefaultConfig()
	qcfg.MaxRetryCount = cfg.MaxRetryCount
	qcfg.RetryCooldown = cfg.RetryCooldown
	qcfg.Logger = logger
	q := queue.NewManager(st, persist, qcfg)

	tokens := auth.NewTokenHolder(loadToken(cfg))

	client := remote.NewClient(cfg.APIURL, tokens, logger)

	ecfg := syncpkg.DefaultConfig()
	ecfg.SyncInterval = cfg.SyncInterval
	ecfg.ReconnectMinBackoff = cfg.ReconnectMinBackoff
	ecfg.ReconnectMaxBackoff = cfg.ReconnectMaxBackoff
	ecfg.Logger = logger

	engine := syncpkg.NewEngine(st, q, client, tokens, cfg.WSURL, ecfg)

	return &app{
		cfg:    cfg,
		store:  st,
		queue:  q,
		tokens: tokens,
		engine: engine,
		logger: logger,
	}, nil
}

func (a *app) Close() {
	a.engine.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Printf("WARNING: failed to close note database: %v", err)
	}
}

func tokenPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "session-token")
}

// loadToken reads the stored session token; empty means no session.
func loadToken(cfg *config.Config) string {
	data, err := os.ReadFile(tokenPath(cfg))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(cfg *config.Config, token string) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(tokenPath(cfg), []byte(token), 0o600)
}

func clearToken(cfg *config.Config) error {
	err := os.Remove(tokenPath(cfg))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
