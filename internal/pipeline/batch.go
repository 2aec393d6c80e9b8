package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor crawls multiple seeds concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Each seed gets a fresh pipeline, and therefore a fresh Spider and
// CrawlState; nothing is shared between concurrent crawls.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each seed.
	pipelineFactory func(seed string) *Pipeline

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values keep the default of 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory is called once per seed, which allows per-seed
// settings such as site overrides from the config file.
func NewBatchProcessor(pipelineFactory func(seed string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls the seeds concurrently and returns one report per
// seed, in the order of seeds. Reports of failed crawls carry the error.
// Seeds not started before cancellation have a nil report.
//
// The returned error is the context error if the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.CrawlReport, error) {
	results := make([]*model.CrawlReport, len(seeds))

	err := bp.ProcessBatchWithCallback(ctx, seeds, func(report *model.CrawlReport, index int) {
		// Each goroutine writes its own index.
		results[index] = report
	})

	return results, err
}

// ProcessBatchWithCallback crawls the seeds concurrently and calls callback
// for each completed crawl. This is useful for streaming results.
//
// The callback is called from the goroutine that completed the crawl, so it
// must be safe for concurrent use if it touches shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// errgroup.WithContext is not used: one failing crawl must not cancel
	// the others.
	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			report := model.NewCrawlReport(seed)
			if err := bp.pipelineFactory(seed).Execute(ctx, report); err != nil {
				bp.logger.Warn("crawl failed",
					"seed", seed,
					"error", err,
				)
			} else {
				bp.logger.Info("crawl finished",
					"seed", seed,
					"pages", len(report.Pages),
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	if err == nil {
		err = ctx.Err()
	}
	return err
}
