package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/entrypoint"
)

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Starts the import API. Configuration is read from the environment
(PORT, HOST, DATABASE_PATH, IMPORT_CACHE_TTL, TASKS_ENABLED, ...) and an
optional .env file in the working directory.`,
		Example: `  # Start on the default port 8188
  shelfsync serve

  # Custom port and database
  PORT=9000 DATABASE_PATH=/data/shelfsync.db shelfsync serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(cmd.Context(), config.NewConfig(), version)
		},
	}
}
