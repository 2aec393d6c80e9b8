package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/report"
)

// TestNewHistoryCmd tests the history command creation.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	if cmd.Name() != "history" {
		t.Errorf("expected name 'history', got %q", cmd.Name())
	}
	for _, name := range []string{"diff", "from", "to", "show", "json", "markdown", "db-dir"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
}

// TestHistoryCommandEmptyDatabase tests listing with no stored runs.
func TestHistoryCommandEmptyDatabase(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()

	t.Run("no seeds", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "history", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "No crawled seeds found") {
			t.Errorf("unexpected output:\n%s", stdout)
		}
	})

	t.Run("no runs for seed", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "history", "https://example.com/", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "No crawl runs found for https://example.com/") {
			t.Errorf("unexpected output:\n%s", stdout)
		}
	})

	t.Run("diff needs two runs", func(t *testing.T) {
		_, _, err := executeCommand(t, "history", "--diff", "https://example.com/", "--db-dir", dbDir)
		if !errors.Is(err, errNoRuns) {
			t.Errorf("expected errNoRuns, got %v", err)
		}
	})

	t.Run("unknown run IDs", func(t *testing.T) {
		_, _, err := executeCommand(t, "history", "--diff", "--from", "old", "--to", "new", "--db-dir", dbDir)
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}

		_, _, err = executeCommand(t, "history", "--show", "missing", "--db-dir", dbDir)
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}

		_, _, err = executeCommand(t, "history", "--show", "latest", "https://example.com/", "--db-dir", dbDir)
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

// TestHistoryCommandFlagErrors tests flag combinations rejected before the
// database is opened.
func TestHistoryCommandFlagErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "json and markdown", args: []string{"--json", "--markdown"}},
		{name: "from without to", args: []string{"--diff", "--from", "a"}},
		{name: "from without diff", args: []string{"--from", "a", "--to", "b"}},
		{name: "diff without seed", args: []string{"--diff"}},
		{name: "diff and show", args: []string{"--diff", "--show", "a", "https://example.com/"}},
		{name: "show latest without seed", args: []string{"--show", "latest"}},
		{name: "too many arguments", args: []string{"https://a.example.com/", "https://b.example.com/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dbDir := filepath.Join(t.TempDir(), "db")
			args := append([]string{"history", "--db-dir", dbDir}, tt.args...)

			if _, _, err := executeCommand(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestHistoryCommandAfterCrawls crawls a site twice and inspects the
// stored runs.
func TestHistoryCommandAfterCrawls(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	seed := site.url("/")

	for i := range 2 {
		site.version.Store(int32(i))
		if _, _, err := executeCommand(t, crawlArgs(t, dir, "", seed)...); err != nil {
			t.Fatalf("crawl %d failed: %v", i, err)
		}
	}

	t.Run("lists seeds", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "history", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Crawled seeds (1)") || !strings.Contains(stdout, seed) {
			t.Errorf("unexpected output:\n%s", stdout)
		}
	})

	t.Run("lists runs", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "history", seed, "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "(2 runs)") {
			t.Errorf("expected 2 runs, got:\n%s", stdout)
		}
		if strings.Count(stdout, "complete") != 2 {
			t.Errorf("expected 2 complete runs, got:\n%s", stdout)
		}
	})

	t.Run("diffs latest two runs", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "history", "--diff", seed, "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "~ "+site.url("/b")) {
			t.Errorf("expected /b to be changed, got:\n%s", stdout)
		}
		if !strings.Contains(stdout, "Summary: +0 -0 ~1 (2 unchanged)") {
			t.Errorf("unexpected summary:\n%s", stdout)
		}
	})

	t.Run("diffs as JSON", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "history", "--diff", "--json", seed, "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got diffJSON
		if err := json.Unmarshal([]byte(stdout), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got.Changed) != 1 || got.Changed[0] != site.url("/b") {
			t.Errorf("expected /b changed, got %v", got.Changed)
		}
		if got.Added == nil || len(got.Added) != 0 {
			t.Errorf("expected empty added list, got %v", got.Added)
		}
	})

	t.Run("shows a stored run", func(t *testing.T) {
		db, err := database.Open(dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		runs, err := db.GetRunHistory(context.Background(), seed)
		db.Close()
		if err != nil || len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d (err %v)", len(runs), err)
		}

		stdout, _, err := executeCommand(t, "history", "--show", runs[0].ID, "--json", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Report == nil || got.Report.ID != runs[0].ID || len(got.Report.Pages) != 3 {
			t.Errorf("unexpected stored report: %+v", got.Report)
		}

		stdout, _, err = executeCommand(t, "history", "--show", "latest", seed, "--json", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var latest report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &latest); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if latest.Report == nil || latest.Report.ID != runs[0].ID {
			t.Errorf("expected newest run %s, got %+v", runs[0].ID, latest.Report)
		}
	})

	t.Run("shows the latest run as text", func(t *testing.T) {
		stdout, _, err := executeCommand(t, "history", "--show", "latest", seed, "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, site.url("/b")) {
			t.Errorf("expected stored pages in output, got:\n%s", stdout)
		}
		if !strings.Contains(stdout, "Images with GPS location: 0") {
			t.Errorf("expected located image count, got:\n%s", stdout)
		}
	})
}

// TestOutputDiff tests the diff renderers.
func TestOutputDiff(t *testing.T) {
	t.Parallel()

	changed := &database.RunDiff{
		OldID:     "run-1",
		NewID:     "run-2",
		Added:     []string{"https://example.com/new"},
		Removed:   []string{"https://example.com/old"},
		Unchanged: 4,
	}
	same := &database.RunDiff{OldID: "run-1", NewID: "run-2", Unchanged: 2}

	t.Run("text with changes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := outputDiffText(&buf, changed); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"+ https://example.com/new", "- https://example.com/old", "Summary: +1 -1 ~0 (4 unchanged)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Changed (") {
			t.Error("expected empty sections to be omitted")
		}
	})

	t.Run("text without changes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := outputDiffText(&buf, same); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No changes (2 pages unchanged)") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})

	t.Run("markdown with changes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := outputDiffMarkdown(&buf, changed); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"# Crawl Run Comparison", "## Added Pages", "## Removed Pages", "https://example.com/new"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in:\n%s", want, out)
			}
		}
		if strings.Contains(out, "## Changed Pages") {
			t.Error("expected empty section to be omitted")
		}
	})

	t.Run("markdown without changes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := outputDiffMarkdown(&buf, same); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No pages were added, removed or changed.") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})
}

// TestRunStatus tests the status column of the run list.
func TestRunStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  database.RunMetadata
		want string
	}{
		{name: "complete", run: database.RunMetadata{}, want: "complete"},
		{name: "partial", run: database.RunMetadata{TimedOut: true}, want: "partial"},
		{name: "error wins", run: database.RunMetadata{TimedOut: true, Error: "boom"}, want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := runStatus(tt.run); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
