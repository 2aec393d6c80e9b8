package model

import (
	"time"

	"github.com/google/uuid"
)

// CrawlReport holds the result of crawling a single seed URL.
// It is filled in by the pipeline steps and then written by the report
// writers and the database.
type CrawlReport struct {
	// ID uniquely identifies this crawl run.
	ID string `json:"id"`

	// Seed is the seed URL as given by the user.
	Seed string `json:"seed"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last step finished.
	FinishedAt time.Time `json:"finished_at"`

	// Pages contains one record per successfully fetched page,
	// in depth-first discovery order.
	Pages []PageRecord `json:"pages"`

	// Failures contains the recovered errors observed during the crawl.
	Failures []Failure `json:"failures,omitempty"`

	// VisitedCount is the number of distinct URLs visited,
	// including the ones that failed.
	VisitedCount int `json:"visited_count"`

	// Chunks contains the page text split into overlapping chunks.
	// Empty unless the chunk step ran.
	Chunks []Chunk `json:"chunks,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is true if the crawl was cancelled before it completed.
	TimedOut bool `json:"timed_out"`

	// Error is the error that stopped a step, if any.
	// Not serialized; ErrorMessage carries the text.
	Error error `json:"-"`

	// ErrorMessage is the text of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// Chunk is a piece of page text sized for downstream processing.
type Chunk struct {
	// URL is the page the chunk was taken from.
	URL string `json:"url"`

	// Index is the position of the chunk within its page, starting at 0.
	Index int `json:"index"`

	// Text is the chunk content.
	Text string `json:"text"`
}

// NewCrawlReport creates a report for the given seed with a fresh run ID.
func NewCrawlReport(seed string) *CrawlReport {
	return &CrawlReport{
		ID:        uuid.NewString(),
		Seed:      seed,
		StartedAt: time.Now(),
		Pages:     make([]PageRecord, 0),
		Failures:  make([]Failure, 0),
	}
}

// TotalImages returns the number of images downloaded across all pages.
func (r *CrawlReport) TotalImages() int {
	total := 0
	for i := range r.Pages {
		total += r.Pages[i].ImageCount()
	}
	return total
}

// TotalTextLength returns the sum of the text lengths of all pages.
func (r *CrawlReport) TotalTextLength() int {
	total := 0
	for i := range r.Pages {
		total += r.Pages[i].TextLength()
	}
	return total
}

// FailureCount returns the number of failures of the given kind.
func (r *CrawlReport) FailureCount(kind FailureKind) int {
	count := 0
	for _, f := range r.Failures {
		if f.Kind == kind {
			count++
		}
	}
	return count
}

// Duration returns how long the crawl took.
// Returns zero if the crawl has not finished.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
