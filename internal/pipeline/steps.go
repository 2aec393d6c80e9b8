package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/sitecrawl/internal/chunk"
	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
)

// CrawlStep crawls the report's seed and stores the pages, failures and
// visited count in the report.
//
// A cancelled crawl is not a step failure: the partial results are kept
// and the report is marked as timed out.
type CrawlStep struct {
	// client performs page and image requests.
	client *http.Client

	// pacer spaces out page requests.
	pacer crawler.Pacer

	// userAgent is the User-Agent header to send with requests.
	userAgent string

	// headers and cookie are sent with every request.
	headers map[string]string
	cookie  string

	// maxPages limits the number of successful pages. 0 means unlimited.
	maxPages int

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// ignorePatterns are URL path patterns to skip during crawling.
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	followPatterns []string

	// imageDir is where images are saved.
	imageDir string

	// downloadImages enables image download.
	downloadImages bool

	// onPage is called for every page as soon as it is recorded.
	onPage func(model.PageRecord)

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlMaxPages sets the maximum pages to crawl.
func WithCrawlMaxPages(maxPages int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxPages = maxPages
	}
}

// WithCrawlDelay sets a fixed delay between page requests.
func WithCrawlDelay(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.pacer = crawler.FixedDelay(d)
	}
}

// WithCrawlPacer sets the request pacer. It overrides WithCrawlDelay.
func WithCrawlPacer(p crawler.Pacer) CrawlStepOption {
	return func(s *CrawlStep) {
		s.pacer = p
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCrawlIgnorePatterns sets URL path patterns to skip during crawling.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.ignorePatterns = patterns
	}
}

// WithCrawlFollowPatterns sets URL path patterns to follow during crawling.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.followPatterns = patterns
	}
}

// WithCrawlUserAgent sets the User-Agent header for HTTP requests.
func WithCrawlUserAgent(userAgent string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.userAgent = userAgent
	}
}

// WithCrawlHeaders sets extra request headers.
func WithCrawlHeaders(headers map[string]string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.headers = headers
	}
}

// WithCrawlCookie sets the Cookie header.
func WithCrawlCookie(cookie string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.cookie = cookie
	}
}

// WithCrawlMaxBodySize sets the maximum response body size in bytes.
// Responses larger than this are truncated to prevent memory exhaustion.
func WithCrawlMaxBodySize(maxBodySize int64) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxBodySize = maxBodySize
	}
}

// WithCrawlImages configures image download. An empty dir keeps the default.
func WithCrawlImages(enabled bool, dir string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.downloadImages = enabled
		if dir != "" {
			s.imageDir = dir
		}
	}
}

// WithCrawlPageCallback registers a function called for every recorded page.
func WithCrawlPageCallback(fn func(model.PageRecord)) CrawlStepOption {
	return func(s *CrawlStep) {
		s.onPage = fn
	}
}

// NewCrawlStep creates a new crawling step.
//
// Default politeness settings:
//   - delay: 1 second between requests (config.DefaultCrawlDelay)
//   - maxBodySize: 10MB to prevent memory exhaustion (config.DefaultMaxBodySize)
func NewCrawlStep(client *http.Client, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		client:         client,
		pacer:          crawler.FixedDelay(config.DefaultCrawlDelay),
		userAgent:      config.DefaultUserAgent,
		maxPages:       config.DefaultMaxPages,
		maxBodySize:    config.DefaultMaxBodySize,
		imageDir:       config.DefaultImageDir,
		downloadImages: true,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	spider := crawler.NewSpider(s.client,
		crawler.WithPacer(s.pacer),
		crawler.WithUserAgent(s.userAgent),
		crawler.WithHeaders(s.headers),
		crawler.WithCookie(s.cookie),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithMaxBodySize(s.maxBodySize),
		crawler.WithIgnorePatterns(s.ignorePatterns),
		crawler.WithFollowPatterns(s.followPatterns),
		crawler.WithImageDir(s.imageDir),
		crawler.WithImageDownload(s.downloadImages),
		crawler.WithPageCallback(s.onPage),
		crawler.WithLogger(s.logger),
	)

	state := crawler.NewCrawlState()
	err := spider.Run(ctx, report.Seed, state)

	report.Pages = state.Results()
	report.Failures = state.Failures()
	report.VisitedCount = state.VisitedCount()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("crawl interrupted, keeping partial results",
			"seed", report.Seed,
			"pages", len(report.Pages),
		)
		report.TimedOut = true
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("crawl completed",
		"seed", report.Seed,
		"pages", len(report.Pages),
		"visited", report.VisitedCount,
		"failures", len(report.Failures),
	)

	return nil
}

// ChunkStep splits the text of every crawled page into overlapping chunks.
type ChunkStep struct {
	splitter *chunk.Splitter
	logger   *slog.Logger
}

// NewChunkStep creates a chunking step with the given chunk size and
// overlap in characters.
func NewChunkStep(size, overlap int, logger *slog.Logger) (*ChunkStep, error) {
	splitter, err := chunk.NewSplitter(size, overlap)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkStep{splitter: splitter, logger: logger}, nil
}

// Name returns the step name.
func (s *ChunkStep) Name() string {
	return "chunk"
}

// Do executes the chunk step.
func (s *ChunkStep) Do(_ context.Context, report *model.CrawlReport) error {
	report.Chunks = s.splitter.SplitPages(report.Pages)
	s.logger.Debug("pages chunked",
		"seed", report.Seed,
		"chunks", len(report.Chunks),
	)
	return nil
}
