package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/tor"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl a website and extract its text and images",
		Long: `Crawl fetches every page reachable from a seed URL, depth-first.

Only links whose URL starts with the seed URL are followed and every URL is
fetched at most once. For each page the visible text is extracted and the
images are downloaded into the image directory. A failing page or image is
recorded and the crawl continues.

By default one line per page is printed: the URL, the text length and the
number of images.

Examples:
  # Crawl a documentation site
  sitecrawl crawl https://docs.example.com/

  # Crawl two sites at the same time
  sitecrawl crawl --batch 2 https://a.example.com/ https://b.example.com/

  # Skip image download and stop after 100 pages
  sitecrawl crawl --no-images --max-pages 100 https://example.com/blog/

  # Route requests through a SOCKS5 proxy
  sitecrawl crawl --proxy 127.0.0.1:9050 https://example.com/

  # Write a Markdown report to a file
  sitecrawl crawl --markdown -o report.md https://example.com/

Configuration file (.sitecrawl) example:
  defaults:
    delay: 1s
  sites:
    "https://docs.example.com/":
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      maxPages: 500

Values from the configuration file override the command-line flags.`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Delay between page requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request (0 means no timeout)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch per seed (0 means no limit)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes read from each page")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header (default: Go HTTP client)")
	cmd.Flags().StringP("images-dir", "i", config.DefaultImageDir,
		"Directory downloaded images are saved to")
	cmd.Flags().Bool("no-images", false,
		"Do not download images")

	// Batch crawling flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Text chunking flags
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize,
		"Maximum chunk length in characters")
	cmd.Flags().Int("chunk-overlap", config.DefaultChunkOverlap,
		"Characters shared by consecutive chunks")

	// Transport flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write reports to specified file path (creates directories if needed)")
	cmd.Flags().String("log-format", config.DefaultLogFormat,
		"Log format: text, json or pretty")

	// Storage flags
	cmd.Flags().Bool("no-save", false,
		"Do not save crawl results to the database")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFormat, cfg.SiteConfigs.Secrets()...)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Interrupts stop the crawl; pages fetched so far are still reported.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and loads the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ImageDir, err = flags.GetString("images-dir"); err != nil {
		return nil, err
	}

	noImages, err := flags.GetBool("no-images")
	if err != nil {
		return nil, err
	}
	cfg.DownloadImages = !noImages

	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = flags.GetInt("chunk-size"); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = flags.GetInt("chunk-overlap"); err != nil {
		return nil, err
	}

	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.LogFormat, err = flags.GetString("log-format"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// A missing file is only an error when --config was given.
	if _, err := cfg.Load(); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs == nil {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Seeds = args

	return cfg, nil
}

// runCrawl crawls every seed and outputs one report per seed.
// Reports go to out unless cfg.ReportFile is set; progress goes to errOut.
func runCrawl(ctx context.Context, cfg *config.Config, out, errOut io.Writer, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"batchSize", cfg.BatchSize,
		"useTor", cfg.UseTor,
		"proxy", cfg.ProxyAddress,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	client, stopTransport, err := newHTTPClient(ctx, cfg, errOut, logger)
	if err != nil {
		return err
	}
	defer stopTransport()

	chunkStep, err := pipeline.NewChunkStep(cfg.ChunkSize, cfg.ChunkOverlap, logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	dest, closeDest, err := openReportOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeDest()
	writer := newReportWriter(cfg, dest)

	prog := newProgress(errOut, !cfg.Verbose, len(cfg.Seeds))
	prog.start()
	defer prog.stop()

	bp := pipeline.NewBatchProcessor(
		func(seed string) *pipeline.Pipeline {
			return createPipelineForSeed(client, chunkStep, cfg, cfg.SiteConfigs.GetSiteConfig(seed), prog.pageFetched, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()

	var (
		mu     sync.Mutex
		failed int
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Seeds, func(crawlReport *model.CrawlReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		prog.stop()
		defer prog.start()
		prog.seedDone()

		if crawlReport.Error != nil {
			failed++
		}

		if _, err := writer.Write(crawlReport); err != nil {
			logger.Error("report failed", "seed", crawlReport.Seed, "error", err)
		}

		// Partial results of an interrupted crawl are saved too.
		if err := saveCrawlReport(context.WithoutCancel(ctx), db, crawlReport, logger); err != nil {
			logger.Error("failed to save crawl report", "seed", crawlReport.Seed, "error", err)
		}
	})

	pages, done := prog.counts()
	logger.Info("crawl finished",
		"seeds", done,
		"pages", pages,
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if batchErr != nil {
		return fmt.Errorf("crawl interrupted: %w", batchErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d crawls failed", failed, len(cfg.Seeds))
	}
	return nil
}

// newHTTPClient returns the HTTP client for the configured transport and a
// function that releases it.
func newHTTPClient(ctx context.Context, cfg *config.Config, errOut io.Writer, logger *slog.Logger) (*http.Client, func(), error) {
	switch {
	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create proxy client: %w", err)
		}

		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Error(), cfg.ProxyAddress)
		}

		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client.NewHTTPClient(), func() {}, nil

	case cfg.UseTor:
		client, embeddedTor, err := startEmbeddedTor(ctx, cfg, errOut, logger)
		if err != nil {
			return nil, nil, err
		}
		stop := func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		return client.NewHTTPClient(), stop, nil

	default:
		return &http.Client{Timeout: cfg.Timeout}, func() {}, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
// Returns the proxy client and embedded Tor manager on success.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, errOut io.Writer, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Fprintln(errOut, "Starting embedded Tor daemon...")
	fmt.Fprintf(errOut, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)

	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started", "socksAddr", embeddedTor.SocksAddr())

	client, err := embeddedTor.Connect(ctx, cfg.Timeout)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck
		return nil, nil, err
	}

	fmt.Fprintf(errOut, "Embedded Tor daemon started, SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())

	return client, embeddedTor, nil
}

// createPipelineForSeed creates the crawl and chunk pipeline for one seed.
// Non-zero site settings override the global ones.
func createPipelineForSeed(
	client *http.Client,
	chunkStep *pipeline.ChunkStep,
	cfg *config.Config,
	site config.SiteConfig,
	onPage func(model.PageRecord),
	logger *slog.Logger,
) *pipeline.Pipeline {
	delay := cfg.CrawlDelay
	if site.Delay > 0 {
		delay = site.Delay
	}
	maxPages := cfg.MaxPages
	if site.MaxPages > 0 {
		maxPages = site.MaxPages
	}
	userAgent := cfg.UserAgent
	if site.UserAgent != "" {
		userAgent = site.UserAgent
	}

	if logger == nil {
		logger = slog.Default()
	}
	if site.Cookie != "" || len(site.Headers) > 0 {
		logger.Debug("applying site request settings", "headers", site.Headers, "cookie", site.Cookie)
	}

	crawlStep := pipeline.NewCrawlStep(client,
		pipeline.WithCrawlDelay(delay),
		pipeline.WithCrawlMaxPages(maxPages),
		pipeline.WithCrawlUserAgent(userAgent),
		pipeline.WithCrawlMaxBodySize(cfg.MaxBodySize),
		pipeline.WithCrawlImages(cfg.DownloadImages, cfg.ImageDir),
		pipeline.WithCrawlHeaders(site.Headers),
		pipeline.WithCrawlCookie(site.Cookie),
		pipeline.WithCrawlIgnorePatterns(site.IgnorePatterns),
		pipeline.WithCrawlFollowPatterns(site.FollowPatterns),
		pipeline.WithCrawlPageCallback(onPage),
		pipeline.WithCrawlLogger(logger),
	)

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)
	p.AddSteps(crawlStep, chunkStep)
	return p
}

// openReportOutput returns the report destination: the file at path, or
// out when path is empty. The returned function closes the file.
func openReportOutput(path string, out io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return out, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain cookies echoed back in page text; keep them private.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter returns the writer for the requested report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// saveCrawlReport saves the crawl report to the database.
// If db is nil, this function is a no-op.
func saveCrawlReport(ctx context.Context, db *database.CrawlDB, crawlReport *model.CrawlReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if err := db.SaveCrawlReport(ctx, crawlReport); err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}

	logger.Info("crawl report saved to database", "seed", crawlReport.Seed, "id", crawlReport.ID)
	return nil
}
