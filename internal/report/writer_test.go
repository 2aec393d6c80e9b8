package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.CrawlReport {
	report := model.NewCrawlReport("https://docs.example.com/")
	report.StartedAt = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(1500 * time.Millisecond)
	report.Pages = append(report.Pages,
		model.PageRecord{
			URL:    "https://docs.example.com/",
			Title:  "Docs Home",
			Text:   "Welcome to the docs",
			Images: []string{"images/logo.png"},
		},
		model.PageRecord{
			URL:    "https://docs.example.com/install",
			Title:  "Install",
			Text:   "go install",
			Images: []string{},
		},
	)
	report.Failures = append(report.Failures,
		model.Failure{URL: "https://docs.example.com/gone", Kind: model.FailureFetch, Message: "unexpected status 404"},
		model.Failure{URL: "https://docs.example.com/broken.png", Kind: model.FailureDownload, Message: "unexpected status 500"},
	)
	report.VisitedCount = 3
	report.Chunks = []model.Chunk{{URL: "https://docs.example.com/", Index: 0, Text: "Welcome to the docs"}}

	return report
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes one line per page", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "https://docs.example.com/\ttext=19\timages=1\n") {
			t.Errorf("expected home page line, got:\n%s", output)
		}
		if !strings.Contains(output, "https://docs.example.com/install\ttext=10\timages=0\n") {
			t.Errorf("expected install page line, got:\n%s", output)
		}
		if strings.Index(output, "docs.example.com/\t") > strings.Index(output, "docs.example.com/install\t") {
			t.Error("expected pages in crawl order")
		}
	})

	t.Run("writes summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Pages: 2  Visited: 3  Images: 1  Failures: 2  Chunks: 1  Duration: 1.5s") {
			t.Errorf("expected summary line, got:\n%s", output)
		}
		if !strings.Contains(output, "Status:  Complete") {
			t.Error("expected complete status")
		}
		if strings.Contains(output, "FAILURES") {
			t.Error("expected failure details only in verbose mode")
		}
	})

	t.Run("verbose mode includes titles and failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))

		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"title: Docs Home",
			"image: images/logo.png",
			"FAILURES",
			"[fetch_failure] https://docs.example.com/gone: unexpected status 404",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("handles timed out report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := createTestReport()
		report.TimedOut = true

		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "TIMED OUT") {
			t.Error("expected timed out status")
		}
	})

	t.Run("handles error report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := createTestReport()
		report.Error = errors.New("connection failed")

		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "ERROR - connection failed") {
			t.Error("expected error status")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.CrawlReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Seed != "https://docs.example.com/" {
			t.Errorf("expected seed, got %q", decoded.Seed)
		}
		if len(decoded.Pages) != 2 || decoded.Pages[1].URL != "https://docs.example.com/install" {
			t.Errorf("expected pages in order, got %+v", decoded.Pages)
		}
		if !strings.HasSuffix(buf.String(), "\n") {
			t.Error("expected trailing newline")
		}
	})

	t.Run("compact by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected single-line JSON")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"seed\"") {
			t.Error("expected indented JSON")
		}
	})

	t.Run("error message is serialized", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := createTestReport()
		report.Error = errors.New("crawl aborted")

		if _, err := NewJSONWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"error":"crawl aborted"`) {
			t.Errorf("expected error field, got %s", buf.String())
		}
	})
}

// TestFullJSONWriter tests the JSON writer with version metadata.
func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewFullJSONWriter(&buf, "v1.2.3", WithIndent("", "\t"))

	if _, err := w.Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded JSONReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Version != "v1.2.3" {
		t.Errorf("expected version v1.2.3, got %q", decoded.Version)
	}
	if decoded.Report == nil || decoded.Report.VisitedCount != 3 {
		t.Errorf("expected wrapped report, got %+v", decoded.Report)
	}
}

// failingWriter is a Writer that always fails.
type failingWriter struct{}

func (failingWriter) Write(*model.CrawlReport) (int, error) {
	return 0, errors.New("write failed")
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		w := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

		n, err := w.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		w := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))

		if _, err := w.Write(createTestReport()); err == nil {
			t.Error("expected error")
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})

	t.Run("no writers", func(t *testing.T) {
		t.Parallel()

		n, err := NewMultiWriter().Write(createTestReport())
		if err != nil || n != 0 {
			t.Errorf("expected 0 bytes and no error, got %d, %v", n, err)
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"`https://docs.example.com/`",
			"## Pages",
			"https://docs.example.com/install",
			"Docs Home",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes failures with chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "## Failures") {
			t.Error("expected failures section")
		}
		if !strings.Contains(output, "```mermaid") {
			t.Error("expected mermaid pie chart")
		}
		if !strings.Contains(output, "download_failure") {
			t.Error("expected failure kind in output")
		}
		if !strings.Contains(output, "Download Failure") {
			t.Error("expected readable failure kind in chart")
		}
	})

	t.Run("no pages and no failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := model.NewCrawlReport("https://empty.example.com/")
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "No pages were fetched.") {
			t.Error("expected empty pages note")
		}
		if !strings.Contains(output, "No failures were recorded.") {
			t.Error("expected no failures tip")
		}
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no chart without failures")
		}
	})

	t.Run("timed out report shows warning", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := createTestReport()
		report.TimedOut = true
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Results are partial.") {
			t.Error("expected partial results warning")
		}
	})
}

// TestMarkdownWriterWithError tests Markdown output of a failed crawl.
func TestMarkdownWriterWithError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	report := createTestReport()
	report.Error = errors.New("connection failed")

	if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "connection failed") {
		t.Error("expected error message in output")
	}
}

// TestTruncateString tests the string truncation helper.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a longer string", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"ab", 5, "ab"},
		{"日本語のタイトルです", 6, "日本語..."},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			result := truncateString(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("truncateString(%q, %d) = %q, want %q",
					tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}
