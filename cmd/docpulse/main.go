// Command docpulse is the local DocPulse CLI. It scores documentation files
// into a SQLite workspace and searches, reports on, exports and imports that
// workspace without any of the services running. API keys for the gateway
// are managed against its Postgres database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/pipeline"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/publisher"
	"github.com/adrian-1-cardona/DocPulse/internal/scoring"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	"github.com/adrian-1-cardona/DocPulse/internal/store/sqlite"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/logger"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	dbPath     string
	cfg        *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "docpulse",
	Short:        "Documentation staleness scoring and search",
	Long:         "DocPulse scores documentation for staleness risk from its metadata, then searches and reports on the scored corpus.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.SetupWriter(os.Stderr, level, "text")

		_ = godotenv.Load()
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if dbPath != "" {
			cfg.SQLite.Path = dbPath
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "workspace database file (overrides sqlite.path)")

	rootCmd.AddCommand(ingestCmd, watchCmd, searchCmd, reportCmd, exportCmd, importCmd, keysCmd)
}

func openStore() (*sqlite.Store, error) {
	st, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("opening workspace %s: %w", cfg.SQLite.Path, err)
	}
	return st, nil
}

func newPipeline() (*pipeline.Pipeline, error) {
	policy, err := scoring.ByName(cfg.Scoring.Policy)
	if err != nil {
		return nil, err
	}
	return pipeline.New(policy,
		pipeline.WithConcurrency(cfg.Scoring.BatchConcurrency),
		pipeline.WithIntake(cfg.Intake),
	), nil
}

// newPublisher persists and audits locally; there is no event bus in CLI mode.
func newPublisher(st store.Store) *publisher.Publisher {
	return publisher.New(st, nil, nil)
}

// actor names the local user in audit entries.
func actor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}
