package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// Each page is printed on one line with its URL, text length and image
// count, followed by a short summary.
// Output is plain ASCII without colors.
type SimpleWriter struct {
	baseWriter

	// verbose adds page titles, image paths and failure details.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writePages(&sb, report)
	w.writeFailures(&sb, report)
	w.writeSummary(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Seed:    %s\n", report.Seed)
	fmt.Fprintf(sb, "Run ID:  %s\n", report.ID)
	fmt.Fprintf(sb, "Started: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Status:  %s\n", statusText(report))
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// writePages writes one line per page in crawl order.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	for i := range report.Pages {
		page := &report.Pages[i]
		fmt.Fprintf(sb, "%s\ttext=%d\timages=%d\n", page.URL, page.TextLength(), page.ImageCount())

		if !w.verbose {
			continue
		}
		if page.Title != "" {
			fmt.Fprintf(sb, "    title: %s\n", page.Title)
		}
		for _, img := range page.Images {
			fmt.Fprintf(sb, "    image: %s\n", img)
		}
	}
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if !w.verbose || len(report.Failures) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	for _, f := range report.Failures {
		fmt.Fprintf(sb, "  [%s] %s: %s\n", f.Kind, f.URL, f.Message)
	}
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Pages: %d  Visited: %d  Images: %d  Failures: %d",
		len(report.Pages), report.VisitedCount, report.TotalImages(), len(report.Failures))
	if len(report.Chunks) > 0 {
		fmt.Fprintf(sb, "  Chunks: %d", len(report.Chunks))
	}
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "  Duration: %s", d.Round(time.Millisecond))
	}
	sb.WriteString("\n")
}
