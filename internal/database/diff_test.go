package database

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestComparePages(t *testing.T) {
	t.Parallel()

	oldPages := map[string]string{
		"https://example.com/":     "h1",
		"https://example.com/gone": "h2",
		"https://example.com/edit": "h3",
	}
	newPages := map[string]string{
		"https://example.com/":     "h1",
		"https://example.com/edit": "h4",
		"https://example.com/new2": "h5",
		"https://example.com/new1": "h6",
	}

	diff := ComparePages(oldPages, newPages)

	if !slices.Equal(diff.Added, []string{"https://example.com/new1", "https://example.com/new2"}) {
		t.Errorf("unexpected added: %v", diff.Added)
	}
	if !slices.Equal(diff.Removed, []string{"https://example.com/gone"}) {
		t.Errorf("unexpected removed: %v", diff.Removed)
	}
	if !slices.Equal(diff.Changed, []string{"https://example.com/edit"}) {
		t.Errorf("unexpected changed: %v", diff.Changed)
	}
	if diff.Unchanged != 1 {
		t.Errorf("expected 1 unchanged page, got %d", diff.Unchanged)
	}
	if !diff.HasChanges() {
		t.Error("expected changes")
	}

	if ComparePages(oldPages, oldPages).HasChanges() {
		t.Error("expected identical runs to have no changes")
	}
}

func TestDiffRuns(t *testing.T) {
	t.Parallel()

	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seed := "https://diff.example.com/"
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := newTestReport(seed, start, map[string]string{
		seed:              "home",
		seed + "about":    "about us",
		seed + "archived": "old news",
	})
	second := newTestReport(seed, start.Add(time.Hour), map[string]string{
		seed:           "home",
		seed + "about": "about us, updated",
		seed + "blog":  "first post",
	})

	if err := db.SaveCrawlReport(ctx, first); err != nil {
		t.Fatalf("failed to save report: %v", err)
	}
	if err := db.SaveCrawlReport(ctx, second); err != nil {
		t.Fatalf("failed to save report: %v", err)
	}

	t.Run("compares stored runs", func(t *testing.T) {
		diff, err := db.DiffRuns(ctx, first.ID, second.ID)
		if err != nil {
			t.Fatalf("failed to diff runs: %v", err)
		}
		if diff.OldID != first.ID || diff.NewID != second.ID {
			t.Errorf("unexpected run IDs %s, %s", diff.OldID, diff.NewID)
		}
		if !slices.Equal(diff.Added, []string{seed + "blog"}) {
			t.Errorf("unexpected added: %v", diff.Added)
		}
		if !slices.Equal(diff.Removed, []string{seed + "archived"}) {
			t.Errorf("unexpected removed: %v", diff.Removed)
		}
		if !slices.Equal(diff.Changed, []string{seed + "about"}) {
			t.Errorf("unexpected changed: %v", diff.Changed)
		}
		if diff.Unchanged != 1 {
			t.Errorf("expected 1 unchanged page, got %d", diff.Unchanged)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := db.DiffRuns(ctx, first.ID, "missing")
		if !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}
