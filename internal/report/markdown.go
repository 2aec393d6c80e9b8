package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecrawl/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
// Failure kinds are also drawn as a mermaid pie chart.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writePages(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Seed + "`"},
			{"Run ID", "`" + report.ID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages", strconv.Itoa(len(report.Pages))},
			{"Visited", strconv.Itoa(report.VisitedCount)},
			{"Images", strconv.Itoa(report.TotalImages())},
			{"Chunks", strconv.Itoa(len(report.Chunks))},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	switch {
	case report.TimedOut:
		md.Warningf("The crawl was cancelled after %d pages. Results are partial.", len(report.Pages))
		md.PlainText("")
	case report.ErrorMessage != "" || report.Error != nil:
		md.Cautionf("The crawl stopped with an error: %s", statusText(report))
		md.PlainText("")
	}
}

// writePages writes one table row per page in crawl order.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages were fetched.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i := range report.Pages {
		page := &report.Pages[i]
		title := page.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			page.URL,
			truncateString(title, 50),
			strconv.Itoa(page.TextLength()),
			strconv.Itoa(page.ImageCount()),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "URL", "Title", "Text Length", "Images"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the failure table and a chart of failure kinds.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Failures")
	md.PlainText("")

	if len(report.Failures) == 0 {
		md.Tip("No failures were recorded.")
		md.PlainText("")
		return
	}

	w.writePieChart(md, report)

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		rows[i] = []string{string(f.Kind), f.URL, truncateString(f.Message, 60)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "URL", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of failure kinds.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Failure Kinds"),
		piechart.WithShowData(true),
	)

	for _, kind := range []model.FailureKind{
		model.FailureInvalidURL,
		model.FailureFetch,
		model.FailureDownload,
	} {
		if n := report.FailureCount(kind); n > 0 {
			chart.LabelAndIntValue(kindLabel(kind), uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// kindLabel turns a failure kind such as "fetch_failure" into "Fetch Failure".
func kindLabel(kind model.FailureKind) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(kind), "_", " "))
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
