package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/nao1215/sitecrawl/internal/model"
)

// progress shows a spinner with page and seed counters while crawls run.
// A disabled progress is a no-op; verbose runs disable it because log
// lines would tear the spinner line apart.
type progress struct {
	spinner *spinner.Spinner

	mu         sync.Mutex
	pages      int
	seedsDone  int
	seedsTotal int
}

// newProgress creates a progress indicator writing to w.
// The spinner only draws when the process runs in a terminal.
func newProgress(w io.Writer, enabled bool, seedsTotal int) *progress {
	p := &progress{seedsTotal: seedsTotal}
	if enabled {
		p.spinner = spinner.New(spinner.CharSets[9], 100*time.Millisecond,
			spinner.WithWriter(w),
		)
		p.spinner.Suffix = p.suffix()
	}
	return p
}

func (p *progress) suffix() string {
	return fmt.Sprintf(" crawling: %d pages, %d/%d seeds done", p.pages, p.seedsDone, p.seedsTotal)
}

// update recomputes the spinner suffix. The caller holds p.mu.
func (p *progress) update() {
	if p.spinner == nil {
		return
	}
	p.spinner.Lock()
	p.spinner.Suffix = p.suffix()
	p.spinner.Unlock()
}

func (p *progress) start() {
	if p.spinner != nil {
		p.spinner.Start()
	}
}

func (p *progress) stop() {
	if p.spinner != nil {
		p.spinner.Stop()
	}
}

// pageFetched counts a page. It is used as the crawl page callback and may
// be called from several crawls at once.
func (p *progress) pageFetched(model.PageRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages++
	p.update()
}

// seedDone counts a finished seed.
func (p *progress) seedDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seedsDone++
	p.update()
}

// counts returns the pages fetched and seeds finished so far.
func (p *progress) counts() (pages, seedsDone int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages, p.seedsDone
}
