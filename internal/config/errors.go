package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers can match them with errors.Is.
var (
	// ErrNoSeed is returned when no seed URL is specified.
	ErrNoSeed = errors.New("no seed specified: provide at least one URL")

	// ErrInvalidTimeout is returned when the timeout is negative.
	// Use 0 for no client timeout.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrEmptyImageDir is returned when image download is enabled without
	// an image directory.
	ErrEmptyImageDir = errors.New("image directory must not be empty when image download is enabled")

	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("invalid chunk size: must be positive")

	// ErrInvalidChunkOverlap is returned when the chunk overlap is negative
	// or not smaller than the chunk size.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap: must be non-negative and smaller than chunk size")

	// ErrInvalidLogFormat is returned for an unknown log format.
	ErrInvalidLogFormat = errors.New("invalid log format: must be one of text, json, pretty")

	// ErrConflictingTransports is returned when both --tor and --proxy are set.
	ErrConflictingTransports = errors.New("conflicting transports: --tor and --proxy cannot be used together")
)
