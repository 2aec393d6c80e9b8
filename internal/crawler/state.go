package crawler

import (
	"slices"

	"github.com/nao1215/sitecrawl/internal/model"
)

// CrawlState is the mutable state of a single crawl run.
//
// The visited set only grows: a URL is added when the spider takes it off
// the stack, before it is fetched, so failed and skipped pages are never
// tried twice. Results are appended in discovery order.
//
// A CrawlState is owned by one spider run and is not safe for concurrent use.
type CrawlState struct {
	visited  map[string]struct{}
	order    []string
	results  []model.PageRecord
	failures []model.Failure
}

// NewCrawlState returns an empty crawl state.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		visited:  make(map[string]struct{}),
		order:    make([]string, 0),
		results:  make([]model.PageRecord, 0),
		failures: make([]model.Failure, 0),
	}
}

// IsVisited reports whether the normalized URL has been visited.
func (s *CrawlState) IsVisited(normalizedURL string) bool {
	_, ok := s.visited[normalizedURL]
	return ok
}

// markVisited adds the URL to the visited set.
// It returns false if the URL was already present.
func (s *CrawlState) markVisited(normalizedURL string) bool {
	if _, ok := s.visited[normalizedURL]; ok {
		return false
	}
	s.visited[normalizedURL] = struct{}{}
	s.order = append(s.order, normalizedURL)
	return true
}

func (s *CrawlState) addResult(page model.PageRecord) {
	s.results = append(s.results, page)
}

func (s *CrawlState) addFailure(err *Error) {
	s.failures = append(s.failures, err.Failure())
}

// Visited returns the visited URLs in the order they were visited.
func (s *CrawlState) Visited() []string {
	return slices.Clone(s.order)
}

// VisitedCount returns the number of distinct URLs visited.
func (s *CrawlState) VisitedCount() int {
	return len(s.order)
}

// Results returns copies of the page records in discovery order.
func (s *CrawlState) Results() []model.PageRecord {
	out := make([]model.PageRecord, len(s.results))
	for i, r := range s.results {
		out[i] = r.Clone()
	}
	return out
}

// ResultCount returns the number of successfully fetched pages.
func (s *CrawlState) ResultCount() int {
	return len(s.results)
}

// Failures returns the recovered failures in the order they occurred.
func (s *CrawlState) Failures() []model.Failure {
	return slices.Clone(s.failures)
}
