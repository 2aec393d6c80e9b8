package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/spf13/cobra"
)

// errNoRuns is returned when a seed has too few stored runs for a diff.
var errNoRuns = errors.New("at least two stored runs are required for a diff")

// latestRun is the --show value that selects the newest run of the seed.
const latestRun = "latest"

// historyOptions holds the parsed history flags.
type historyOptions struct {
	dbDir    string
	diff     bool
	from     string
	to       string
	show     string
	json     bool
	markdown bool
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show stored crawl runs and compare them",
		Long: `History shows the crawl runs stored in the database.

Without arguments it lists every seed that has been crawled. With a seed URL
it lists the runs of that seed, newest first. With --diff it compares the
pages of two runs: pages added, pages removed and pages whose text changed.

Examples:
  # List all crawled seeds
  sitecrawl history

  # List the runs of a seed
  sitecrawl history https://docs.example.com/

  # Compare the latest two runs of a seed
  sitecrawl history --diff https://docs.example.com/

  # Compare two specific runs
  sitecrawl history --diff --from <run-id> --to <run-id>

  # Print a stored run as Markdown
  sitecrawl history --show <run-id> --markdown

  # Print the newest run of a seed
  sitecrawl history --show latest https://docs.example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("diff", false,
		"Compare two runs (the latest two of the seed unless --from/--to are given)")
	cmd.Flags().String("from", "",
		"Older run ID for --diff")
	cmd.Flags().String("to", "",
		"Newer run ID for --diff")
	cmd.Flags().String("show", "",
		"Print the stored report of a run ID, or of the newest run of the seed with \"latest\"")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// parseHistoryOptions reads the history flags and checks their combination.
func parseHistoryOptions(cmd *cobra.Command, args []string) (*historyOptions, error) {
	opts := &historyOptions{}
	flags := cmd.Flags()

	var err error
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	if opts.diff, err = flags.GetBool("diff"); err != nil {
		return nil, err
	}
	if opts.from, err = flags.GetString("from"); err != nil {
		return nil, err
	}
	if opts.to, err = flags.GetString("to"); err != nil {
		return nil, err
	}
	if opts.show, err = flags.GetString("show"); err != nil {
		return nil, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}

	if opts.json && opts.markdown {
		return nil, config.ErrConflictingReportFormats
	}
	if (opts.from == "") != (opts.to == "") {
		return nil, errors.New("--from and --to must be used together")
	}
	if opts.from != "" && !opts.diff {
		return nil, errors.New("--from and --to require --diff")
	}
	if opts.diff && opts.from == "" && len(args) == 0 {
		return nil, errors.New("seed URL is required for --diff without --from/--to")
	}
	if opts.diff && opts.show != "" {
		return nil, errors.New("--diff and --show cannot be used together")
	}
	if opts.show == latestRun && len(args) == 0 {
		return nil, errors.New("seed URL is required for --show latest")
	}

	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Validate before opening the database so bad flags leave no file behind.
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.show != "":
		seed := ""
		if len(args) == 1 {
			seed = args[0]
		}
		return showRun(ctx, db, out, seed, opts)
	case opts.diff:
		oldID, newID := opts.from, opts.to
		if oldID == "" {
			oldID, newID, err = latestTwoRuns(ctx, db, args[0])
			if err != nil {
				return err
			}
		}
		return diffRuns(ctx, db, out, oldID, newID, opts)
	case len(args) == 1:
		return listRuns(ctx, db, out, args[0])
	default:
		return listSeeds(ctx, db, out)
	}
}

// listSeeds lists all seeds that have runs in the database.
func listSeeds(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawled seeds found in the database.")
		fmt.Fprintln(out, "\nUse 'sitecrawl crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'sitecrawl history <url>' to see the runs of a seed.")

	return nil
}

// listRuns lists the runs of a seed, newest first.
func listRuns(ctx context.Context, db *database.CrawlDB, out io.Writer, seed string) error {
	runs, err := db.GetRunHistory(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No crawl runs found for %s\n", seed)
		fmt.Fprintln(out, "\nUse 'sitecrawl crawl' to crawl this site.")
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d runs):\n\n", seed, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %6s  %7s  %6s  %8s  %s\n",
		"ID", "Started", "Pages", "Visited", "Images", "Failures", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 104))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %6d  %7d  %6d  %8d  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.PageCount,
			run.VisitedCount,
			run.ImageCount,
			run.FailureCount,
			runStatus(run),
		)
	}

	fmt.Fprintln(out, "\nUse 'sitecrawl history --diff <url>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'sitecrawl history --show <id>' to print a stored report.")

	return nil
}

// runStatus returns a short status word for a stored run.
func runStatus(run database.RunMetadata) string {
	switch {
	case run.Error != "":
		return "error"
	case run.TimedOut:
		return "partial"
	default:
		return "complete"
	}
}

// latestTwoRuns returns the IDs of the second newest and newest run of seed.
func latestTwoRuns(ctx context.Context, db *database.CrawlDB, seed string) (string, string, error) {
	runs, err := db.GetRunHistory(ctx, seed)
	if err != nil {
		return "", "", fmt.Errorf("failed to get run history: %w", err)
	}
	if len(runs) < 2 {
		return "", "", fmt.Errorf("%w: %s has %d", errNoRuns, seed, len(runs))
	}
	return runs[1].ID, runs[0].ID, nil
}

// showRun prints a stored report with the crawl report writers.
// The text form also reports how many of the run's images carry GPS data.
func showRun(ctx context.Context, db *database.CrawlDB, out io.Writer, seed string, opts *historyOptions) error {
	var (
		stored *model.CrawlReport
		err    error
	)
	if opts.show == latestRun {
		stored, err = db.GetLatestCrawlReport(ctx, seed)
	} else {
		stored, err = db.GetCrawlReport(ctx, opts.show)
	}
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if stored == nil {
		if opts.show == latestRun {
			return fmt.Errorf("%w: no runs for %s", database.ErrRunNotFound, seed)
		}
		return fmt.Errorf("%w: %s", database.ErrRunNotFound, opts.show)
	}

	cfg := config.NewConfig()
	cfg.JSONReport = opts.json
	cfg.MarkdownReport = opts.markdown

	if _, err := newReportWriter(cfg, out).Write(stored); err != nil {
		return err
	}
	if opts.json || opts.markdown {
		return nil
	}

	located, err := db.CountImagesWithLocation(ctx, stored.ID)
	if err != nil {
		return fmt.Errorf("failed to count located images: %w", err)
	}
	fmt.Fprintf(out, "Images with GPS location: %d\n", located)
	return nil
}

// diffRuns compares two runs and prints the result.
func diffRuns(ctx context.Context, db *database.CrawlDB, out io.Writer, oldID, newID string, opts *historyOptions) error {
	diff, err := db.DiffRuns(ctx, oldID, newID)
	if err != nil {
		return fmt.Errorf("failed to compare runs: %w", err)
	}

	switch {
	case opts.json:
		return outputDiffJSON(out, diff)
	case opts.markdown:
		return outputDiffMarkdown(out, diff)
	default:
		return outputDiffText(out, diff)
	}
}

// diffJSON is the JSON form of a run diff.
type diffJSON struct {
	OldID     string   `json:"old_id"`
	NewID     string   `json:"new_id"`
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Changed   []string `json:"changed"`
	Unchanged int      `json:"unchanged"`
}

// outputDiffJSON outputs a run diff in JSON format.
func outputDiffJSON(out io.Writer, diff *database.RunDiff) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(diffJSON{
		OldID:     diff.OldID,
		NewID:     diff.NewID,
		Added:     nonNil(diff.Added),
		Removed:   nonNil(diff.Removed),
		Changed:   nonNil(diff.Changed),
		Unchanged: diff.Unchanged,
	})
}

// nonNil makes empty URL lists encode as [] instead of null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// outputDiffMarkdown outputs a run diff in Markdown format.
func outputDiffMarkdown(out io.Writer, diff *database.RunDiff) error {
	md := markdown.NewMarkdown(out)

	md.H1("Crawl Run Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Old run", diff.OldID},
			{"New run", diff.NewID},
			{"Added", fmt.Sprintf("%d", len(diff.Added))},
			{"Removed", fmt.Sprintf("%d", len(diff.Removed))},
			{"Changed", fmt.Sprintf("%d", len(diff.Changed))},
			{"Unchanged", fmt.Sprintf("%d", diff.Unchanged)},
		},
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.Note("No pages were added, removed or changed.")
		return md.Build()
	}

	sections := []struct {
		title string
		urls  []string
	}{
		{title: "Added Pages", urls: diff.Added},
		{title: "Removed Pages", urls: diff.Removed},
		{title: "Changed Pages", urls: diff.Changed},
	}
	for _, section := range sections {
		if len(section.urls) == 0 {
			continue
		}
		md.H2(section.title)
		md.PlainText("")
		md.BulletList(section.urls...)
		md.PlainText("")
	}

	return md.Build()
}

// outputDiffText outputs a run diff as human-readable text.
func outputDiffText(out io.Writer, diff *database.RunDiff) error {
	fmt.Fprintf(out, "Comparing runs:\n  old: %s\n  new: %s\n\n", diff.OldID, diff.NewID)

	if !diff.HasChanges() {
		fmt.Fprintf(out, "No changes (%d pages unchanged)\n", diff.Unchanged)
		return nil
	}

	for _, section := range []struct {
		label  string
		marker string
		urls   []string
	}{
		{label: "Added", marker: "+", urls: diff.Added},
		{label: "Removed", marker: "-", urls: diff.Removed},
		{label: "Changed", marker: "~", urls: diff.Changed},
	} {
		if len(section.urls) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s (%d):\n", section.label, len(section.urls))
		for _, u := range section.urls {
			fmt.Fprintf(out, "  %s %s\n", section.marker, u)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Summary: +%d -%d ~%d (%d unchanged)\n",
		len(diff.Added), len(diff.Removed), len(diff.Changed), diff.Unchanged)

	return nil
}
