package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/importers"
	"github.com/mrlokans/shelfsync/internal/services"
)

// RereadOptions are the flags of the reread command.
type RereadOptions struct {
	DatabasePath   string
	BookID         uint
	ISBN           string
	Dates          []string
	Rating         int
	Review         string
	SkipDuplicates bool
	Output         string
	Verbose        bool
}

func newRereadCmd() *cobra.Command {
	opts := &RereadOptions{}

	cmd := &cobra.Command{
		Use:   "reread",
		Short: "Record repeated readings of a catalog book",
		Long: `Creates one archived "read" session per completion date, numbered in
chronological order. The book is selected by --book-id or --isbn.`,
		Example: `  shelfsync reread --book-id 42 --date 2019-03-01 --date 2023-08-15 --rating 5
  shelfsync reread --isbn 0441013597 --date 2021/11/02`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := runReread(cmd, opts)
			if err != nil {
				return err
			}
			report := &summaryReport{}
			fillSummary(report, summary)
			return writeReport(cmd.OutOrStdout(), opts.Output, report)
		},
	}

	cmd.Flags().StringVar(&opts.DatabasePath, "db", config.DefaultDatabasePath, "Path to the catalog database")
	cmd.Flags().UintVar(&opts.BookID, "book-id", 0, "Catalog ID of the book")
	cmd.Flags().StringVar(&opts.ISBN, "isbn", "", "ISBN-10 or ISBN-13 of the book")
	cmd.Flags().StringArrayVar(&opts.Dates, "date", nil, "Completion date, repeatable (YYYY-MM-DD or YYYY/MM/DD)")
	cmd.Flags().IntVar(&opts.Rating, "rating", 0, "Rating 1-5 applied to every session (0 for none)")
	cmd.Flags().StringVar(&opts.Review, "review", "", "Review text stored on every session")
	cmd.Flags().BoolVar(&opts.SkipDuplicates, "skip-duplicates", true, "Skip dates that repeat an existing session")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", outputText, "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&opts.Verbose, "verbose", false, "Enable verbose logging")
	cmd.MarkFlagsOneRequired("book-id", "isbn")
	cmd.MarkFlagsMutuallyExclusive("book-id", "isbn")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func runReread(cmd *cobra.Command, opts *RereadOptions) (*services.ExecutionSummary, error) {
	if err := validateOutput(opts.Output); err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(opts.Dates))
	for _, raw := range opts.Dates {
		d, err := importers.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --date %q: %w", raw, err)
		}
		dates = append(dates, d)
	}

	rereadOpts := services.RereadOptions{
		Review:         opts.Review,
		SkipDuplicates: opts.SkipDuplicates,
	}
	if opts.Rating != 0 {
		rating := opts.Rating
		rereadOpts.Rating = &rating
	}

	app, err := openApp(opts.DatabasePath, opts.Verbose)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	ctx := cmd.Context()
	bookID := opts.BookID
	if opts.ISBN != "" {
		bookID, err = app.Reconciler.ResolveISBN(ctx, opts.ISBN)
		if err != nil {
			return nil, err
		}
	}

	return app.Reconciler.Reread(ctx, bookID, dates, rereadOpts)
}
