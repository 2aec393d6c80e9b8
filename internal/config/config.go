package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout of 0 leaves request timeouts to the HTTP transport.
	// Crawls of slow sites should set one with --timeout.
	DefaultTimeout = time.Duration(0)

	// DefaultCrawlDelay is the politeness delay between page requests.
	// The seed is fetched immediately; every later page waits this long.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultMaxPages of 0 means the crawl is bounded only by the site.
	DefaultMaxPages = 0

	// DefaultBatchSize is the number of seeds crawled concurrently.
	// Seeds on the same host share its politeness budget, so keep this small.
	DefaultBatchSize = 4

	// DefaultImageDir is where downloaded images are stored, relative to
	// the working directory.
	DefaultImageDir = "images"

	// DefaultUserAgent is empty, which keeps the Go HTTP client default.
	DefaultUserAgent = ""

	// DefaultMaxBodySize limits the page body size to read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultChunkSize and DefaultChunkOverlap configure text chunking, in runes.
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// DefaultLogFormat is the log handler used when none is given.
	DefaultLogFormat = LogFormatText

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"
)

// Log formats accepted by LogFormat.
const (
	LogFormatText   = "text"
	LogFormatJSON   = "json"
	LogFormatPretty = "pretty"
)

// Config holds all configuration options for sitecrawl.
// It is populated from CLI flags and the optional config file and passed
// down explicitly; there is no global configuration.
type Config struct {
	// Seeds are the start URLs. Each seed is crawled independently and its
	// string form bounds the crawl scope.
	Seeds []string

	// Timeout is the per-request timeout. 0 means no client timeout.
	Timeout time.Duration

	// CrawlDelay is the delay before every page request after the seed.
	CrawlDelay time.Duration

	// MaxPages stops a crawl after this many successful pages.
	// 0 means unlimited.
	MaxPages int

	// MaxBodySize is the maximum page body size in bytes to read.
	// Larger bodies are truncated.
	MaxBodySize int64

	// ImageDir is the directory images are downloaded into.
	ImageDir string

	// DownloadImages enables image download. When false, page records carry
	// no image paths.
	DownloadImages bool

	// UserAgent is the User-Agent header sent with requests.
	// Empty keeps the HTTP client default.
	UserAgent string

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// ChunkSize and ChunkOverlap configure the text chunking step.
	ChunkSize    int
	ChunkOverlap int

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat selects the log handler: "text", "json" or "pretty".
	LogFormat string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .sitecrawl in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the config file.
	SiteConfigs *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When empty the report is written to stdout.
	ReportFile string

	// ProxyAddress routes all requests through a SOCKS5 proxy ("host:port").
	// Empty means direct connections.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap. Only used when UseTor is set.
	TorStartupTimeout time.Duration

	// DBDir is the directory holding the crawl history database.
	// Defaults to the XDG data directory (~/.local/share/sitecrawl on Linux).
	DBDir string

	// SaveToDB enables saving crawl reports to the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		CrawlDelay:        DefaultCrawlDelay,
		MaxPages:          DefaultMaxPages,
		MaxBodySize:       DefaultMaxBodySize,
		ImageDir:          DefaultImageDir,
		DownloadImages:    true,
		UserAgent:         DefaultUserAgent,
		BatchSize:         DefaultBatchSize,
		ChunkSize:         DefaultChunkSize,
		ChunkOverlap:      DefaultChunkOverlap,
		LogFormat:         DefaultLogFormat,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
// On macOS: ~/Library/Application Support/sitecrawl
// On Windows: %LOCALAPPDATA%\sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.DownloadImages && c.ImageDir == "" {
		return ErrEmptyImageDir
	}

	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return ErrInvalidChunkOverlap
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON, LogFormatPretty:
	default:
		return ErrInvalidLogFormat
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingTransports
	}

	return nil
}
