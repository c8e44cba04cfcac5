package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/matcher"
	"github.com/mrlokans/shelfsync/internal/services"
)

// ImportOptions are the flags of the import command.
type ImportOptions struct {
	FilePath       string
	Provider       string
	DatabasePath   string
	DryRun         bool
	SkipDuplicates bool
	MinConfidence  string
	Output         string
	Verbose        bool
}

func newImportCmd() *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a Goodreads or StoryGraph export",
		Long: `Normalizes an export, matches every row against the catalog and creates
reading sessions for the matched rows.

The provider is detected from the header row when --provider is omitted.
With --dry-run nothing is written and the match preview is printed instead.`,
		Example: `  # Preview matches without writing anything
  shelfsync import --file goodreads_library_export.csv --dry-run

  # Import only high-confidence matches and print a JSON summary
  shelfsync import --file export.csv --min-confidence high --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runImport(cmd, opts)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), opts.Output, report)
		},
	}

	cmd.Flags().StringVar(&opts.FilePath, "file", "", "Path to the CSV export (required)")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "Export format: goodreads or storygraph (detected when empty)")
	cmd.Flags().StringVar(&opts.DatabasePath, "db", config.DefaultDatabasePath, "Path to the catalog database")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be imported without making changes")
	cmd.Flags().BoolVar(&opts.SkipDuplicates, "skip-duplicates", true, "Skip records that repeat an existing session")
	cmd.Flags().StringVar(&opts.MinConfidence, "min-confidence", "", "Treat matches below this confidence as unmatched (exact, high, medium, low)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", outputText, "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&opts.Verbose, "verbose", false, "Enable verbose logging")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions) (*importReport, error) {
	if err := validateOutput(opts.Output); err != nil {
		return nil, err
	}

	var provider importers.Provider
	if opts.Provider != "" {
		p, err := importers.ParseProvider(opts.Provider)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	var minConfidence matcher.Confidence
	if opts.MinConfidence != "" {
		c, err := matcher.ParseConfidence(opts.MinConfidence)
		if err != nil {
			return nil, err
		}
		minConfidence = c
	}

	file, err := os.Open(opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer file.Close()

	app, err := openApp(opts.DatabasePath, opts.Verbose)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	ctx := cmd.Context()
	upload, err := app.Reconciler.Upload(ctx, file, provider, opts.FilePath)
	if err != nil {
		return nil, err
	}
	report := newImportReport(upload, opts.DryRun)

	if opts.DryRun {
		var matches []matcher.MatchResult
		filter := services.PreviewFilter{Limit: services.MaxPreviewLimit}
		for {
			page, err := app.Reconciler.Preview(upload.ImportID, filter)
			if err != nil {
				return nil, err
			}
			matches = append(matches, page.Matches...)
			if !page.HasMore {
				break
			}
			filter.Offset += len(page.Matches)
		}
		report.addMatches(services.ApplyMinConfidence(matches, minConfidence))
		app.Reconciler.Discard(upload.ImportID)
		return report, nil
	}

	summary, err := app.Reconciler.Execute(ctx, upload.ImportID, services.ExecuteOptions{
		SkipDuplicates: opts.SkipDuplicates,
		MinConfidence:  minConfidence,
	})
	if err != nil {
		return nil, err
	}
	report.addSummary(summary)
	return report, nil
}
