package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Spider crawls a site depth-first from a seed URL.
// Only links whose normalized form starts with the normalized seed are
// followed, each URL is fetched at most once, and requests are spaced out
// by a Pacer.
//
// A Spider holds configuration only; all per-run state lives in a
// CrawlState, so one Spider can run several crawls one after another.
type Spider struct {
	// client performs page and image requests.
	client *http.Client

	// pacer spaces out page requests.
	pacer Pacer

	// userAgent is the User-Agent header to use.
	// Empty means the Go client default.
	userAgent string

	// headers are extra request headers (for example Authorization).
	headers map[string]string

	// cookie is sent as the Cookie header when non-empty.
	cookie string

	// maxBodySize limits the size of page bodies to read.
	maxBodySize int64

	// maxImageSize limits the size of downloaded images.
	maxImageSize int64

	// maxPages stops the crawl after this many successful pages.
	// 0 means no limit.
	maxPages int

	// ignorePatterns are URL path patterns to skip during crawling.
	ignorePatterns []string

	// followPatterns restrict crawling to matching URL paths when set.
	followPatterns []string

	// imageDir is the directory images are saved to.
	imageDir string

	// downloadImages enables image download.
	downloadImages bool

	// onPage is called with a copy of every record as it is appended.
	onPage func(model.PageRecord)

	// logger for structured logging.
	logger *slog.Logger
}

// Default spider settings.
const (
	// DefaultDelay is the politeness delay between page requests.
	DefaultDelay = FixedDelay(time.Second)

	// DefaultImageDir is the image directory, relative to the working directory.
	DefaultImageDir = "images"

	// DefaultMaxBodySize limits page bodies to 10MB.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultMaxImageSize limits images to 10MB.
	DefaultMaxImageSize = 10 * 1024 * 1024
)

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithPacer sets the request pacer.
func WithPacer(p Pacer) SpiderOption {
	return func(s *Spider) {
		if p != nil {
			s.pacer = p
		}
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) SpiderOption {
	return func(s *Spider) {
		s.headers = headers
	}
}

// WithCookie sets the Cookie header sent with every request.
func WithCookie(cookie string) SpiderOption {
	return func(s *Spider) {
		s.cookie = cookie
	}
}

// WithMaxBodySize sets the maximum page body size.
func WithMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithMaxImageSize sets the maximum image size.
func WithMaxImageSize(size int64) SpiderOption {
	return func(s *Spider) {
		if size > 0 {
			s.maxImageSize = size
		}
	}
}

// WithMaxPages stops the crawl after n successful pages. 0 means no limit.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
// The seed itself is always fetched.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithImageDir sets the directory downloaded images are written to.
func WithImageDir(dir string) SpiderOption {
	return func(s *Spider) {
		s.imageDir = dir
	}
}

// WithImageDownload enables or disables image download.
// When disabled no image directory is created and Images stays empty.
func WithImageDownload(enabled bool) SpiderOption {
	return func(s *Spider) {
		s.downloadImages = enabled
	}
}

// WithPageCallback registers a function called for every appended record.
func WithPageCallback(fn func(model.PageRecord)) SpiderOption {
	return func(s *Spider) {
		s.onPage = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a new Spider that issues requests with client.
// A nil client is replaced by a client without timeout.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	if client == nil {
		client = &http.Client{}
	}

	s := &Spider{
		client:         client,
		pacer:          DefaultDelay,
		maxBodySize:    DefaultMaxBodySize,
		maxImageSize:   DefaultMaxImageSize,
		imageDir:       DefaultImageDir,
		downloadImages: true,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl crawls the site rooted at seedURL and returns the fetched pages in
// depth-first discovery order.
//
// Only a malformed seed, a failure to create the image directory, or ctx
// cancellation produce an error. Page and image failures are logged and
// skipped. On cancellation the pages fetched so far are returned together
// with the context error.
func (s *Spider) Crawl(ctx context.Context, seedURL string) ([]model.PageRecord, error) {
	state := NewCrawlState()
	err := s.Run(ctx, seedURL, state)
	return state.Results(), err
}

// Run crawls the site rooted at seedURL, recording progress in state.
//
// Traversal is an explicit stack: links are pushed in reverse document order
// so they pop in document order, and each child's subtree is finished before
// the next sibling is visited. A URL already visited when it is popped is
// skipped. The seed is fetched immediately; every later page fetch is
// preceded by a pacer wait.
func (s *Spider) Run(ctx context.Context, seedURL string, state *CrawlState) error {
	if !IsValidURL(seedURL) {
		return invalidURLError(seedURL, nil)
	}
	base := NormalizeURL(seedURL)

	if s.downloadImages {
		if err := os.MkdirAll(s.imageDir, 0750); err != nil {
			return fmt.Errorf("failed to create image directory: %w", err)
		}
	}

	stack := []string{base}
	first := true

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.maxPages > 0 && state.ResultCount() >= s.maxPages {
			s.logger.Info("max pages reached", "seed", base, "max_pages", s.maxPages)
			return nil
		}

		top := len(stack) - 1
		pageURL := stack[top]
		stack = stack[:top]

		if !state.markVisited(pageURL) {
			continue
		}

		if !first {
			if err := s.pacer.Wait(ctx); err != nil {
				return err
			}
		}
		first = false

		links := s.visit(ctx, base, pageURL, state)
		for i := len(links) - 1; i >= 0; i-- {
			if !state.IsVisited(links[i]) {
				stack = append(stack, links[i])
			}
		}
	}

	return ctx.Err()
}

// visit fetches one page, records it, and returns the in-scope links to
// follow. It returns nil when the page failed.
func (s *Spider) visit(ctx context.Context, base, pageURL string, state *CrawlState) []string {
	s.logger.Info("scraping", "url", pageURL)

	resp, err := s.get(ctx, pageURL)
	if err != nil {
		if ctx.Err() == nil {
			s.fail(state, fetchError(pageURL, err))
		}
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		s.fail(state, fetchStatusError(pageURL, resp.StatusCode))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		if ctx.Err() == nil {
			s.fail(state, fetchError(pageURL, err))
		}
		return nil
	}

	page := model.PageRecord{
		URL:         pageURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Images:      make([]string, 0),
	}

	var links []string
	if model.IsHTMLContentType(page.ContentType) {
		// Resolve against the requested URL: if the seed redirects to another
		// scheme or host, relative links must stay under the seed prefix.
		parser, err := NewParser(pageURL)
		if err != nil {
			s.fail(state, fetchError(pageURL, err))
			return nil
		}

		result, err := parser.Parse(bytes.NewReader(body))
		if err != nil {
			s.fail(state, fetchError(pageURL, fmt.Errorf("failed to parse page: %w", err)))
			return nil
		}

		page.Title = result.Title
		page.Text = result.Text

		if s.downloadImages {
			s.collectImages(ctx, &page, result.Images, state)
		}

		links = s.followableLinks(base, result.Links)
	}

	page.ComputeTextHash()
	state.addResult(page)

	if s.onPage != nil {
		s.onPage(page.Clone())
	}

	return links
}

// collectImages downloads the page images in document order and records
// the ones that were saved.
func (s *Spider) collectImages(ctx context.Context, page *model.PageRecord, sources []string, state *CrawlState) {
	for _, src := range sources {
		if ctx.Err() != nil {
			return
		}

		if !IsValidURL(src) {
			s.fail(state, invalidURLError(src, nil))
			continue
		}

		record, derr := s.downloadImage(ctx, src)
		if derr != nil {
			if ctx.Err() == nil {
				s.fail(state, derr)
			}
			continue
		}

		page.Images = append(page.Images, record.Path)
		page.ImageDetails = append(page.ImageDetails, record)
	}
}

// followableLinks returns the normalized links that are valid, in scope and
// allowed by the path patterns, keeping document order.
func (s *Spider) followableLinks(base string, links []string) []string {
	out := make([]string, 0, len(links))
	for _, link := range links {
		if !IsValidURL(link) {
			s.logger.Debug("skipping invalid link", "url", link)
			continue
		}

		normalized := NormalizeURL(link)
		if !InScope(base, normalized) {
			continue
		}
		if !filterPath(normalized, s.ignorePatterns, s.followPatterns) {
			s.logger.Debug("skipping filtered link", "url", normalized)
			continue
		}

		out = append(out, normalized)
	}
	return out
}

// get issues a GET request with the configured headers.
func (s *Spider) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}

	return s.client.Do(req)
}

// fail records and logs a recovered error.
func (s *Spider) fail(state *CrawlState, err *Error) {
	state.addFailure(err)
	s.logger.Warn("crawl failure",
		"kind", string(err.Kind),
		"url", err.URL,
		"error", err.Error(),
	)
}
