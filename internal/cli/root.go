// Package cli implements the shelfsync commands.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/entrypoint"
)

// NewRootCmd builds the shelfsync command tree.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelfsync",
		Short: "Reconcile reading-history exports with a book catalog",
		Long: `shelfsync imports reading history exported from Goodreads or StoryGraph.

Each export is normalized, matched against the local catalog with a
confidence score, previewed, and then turned into reading sessions.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd(version))
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newRereadCmd())

	return cmd
}

// openApp wires the pipeline against dbPath for a one-shot command.
// Metrics and the task queue are server concerns and stay off.
func openApp(dbPath string, verbose bool) (*entrypoint.App, error) {
	cfg := config.NewConfig()
	if dbPath != "" {
		abs, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for database: %w", err)
		}
		cfg.Database.Path = abs
	}
	cfg.Metrics.Enabled = false
	cfg.Tasks.Enabled = false

	logger := zap.NewNop()
	if verbose {
		var err error
		logger, err = entrypoint.NewLogger("debug", "console")
		if err != nil {
			return nil, err
		}
	}
	return entrypoint.NewApp(cfg, logger)
}
