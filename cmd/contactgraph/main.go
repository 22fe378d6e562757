// Command contactgraph resolves contact handles from extractor output into
// person identities, builds the weighted relationship graph between them and
// exports or stores the result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrypster/contactgraph/internal/config"
	"github.com/scrypster/contactgraph/internal/logging"
	"github.com/scrypster/contactgraph/internal/storage"
	"github.com/scrypster/contactgraph/internal/storage/postgres"
	"github.com/scrypster/contactgraph/internal/storage/sqlite"
)

var (
	// Global flags
	verbose    bool
	policyFile string
	dataPath   string
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "contactgraph",
	Short: "Resolve contacts into identities and build their relationship graph",
	Long: `contactgraph reads the records produced by the chat, mail and address
book extractors, merges handles that belong to the same person into a single
identity and weighs every pair of people by how often and how recently they
interacted.

Input files are named after their source: contacts.json holds contact
records, messages.jsonl and mail.yaml hold interaction records.

Configuration comes from CONTACTGRAPH_* environment variables and an optional
YAML policy file (--policy).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(policyFile)
		if err != nil {
			return err
		}
		if dataPath != "" {
			cfg.Storage.DataPath = dataPath
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "YAML policy file (or set CONTACTGRAPH_POLICY_FILE)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Data directory (or set CONTACTGRAPH_DATA_PATH)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(backupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext returns a context cancelled on SIGINT/SIGTERM or after d.
// d <= 0 means no timeout.
func commandContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

// openStore opens the configured snapshot store. The "none" engine returns
// a nil store.
func openStore(cfg *config.Config) (storage.SnapshotStore, error) {
	switch cfg.Storage.StorageEngine {
	case config.EngineNone:
		return nil, nil
	case config.EnginePostgres:
		store, err := postgres.NewStore(cfg.Storage.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := sqlite.NewStore(cfg.DBPath(), logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// requireStore opens the store for commands that cannot work without one.
func requireStore(cfg *config.Config) (storage.SnapshotStore, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("no snapshot store configured (CONTACTGRAPH_STORAGE_ENGINE=none)")
	}
	return store, nil
}
