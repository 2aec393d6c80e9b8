package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("crawl run not found")

// RunDiff describes how the pages of two runs of the same seed differ.
// URLs are sorted.
type RunDiff struct {
	// OldID and NewID are the compared run IDs.
	OldID string
	NewID string

	// Added are pages only present in the newer run.
	Added []string

	// Removed are pages only present in the older run.
	Removed []string

	// Changed are pages present in both runs whose text hash differs.
	Changed []string

	// Unchanged is the number of pages with identical text in both runs.
	Unchanged int
}

// HasChanges reports whether the runs differ at all.
func (d *RunDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// ComparePages diffs two URL-to-text-hash maps.
func ComparePages(oldPages, newPages map[string]string) *RunDiff {
	diff := &RunDiff{}

	for url, newHash := range newPages {
		oldHash, ok := oldPages[url]
		switch {
		case !ok:
			diff.Added = append(diff.Added, url)
		case oldHash != newHash:
			diff.Changed = append(diff.Changed, url)
		default:
			diff.Unchanged++
		}
	}
	for url := range oldPages {
		if _, ok := newPages[url]; !ok {
			diff.Removed = append(diff.Removed, url)
		}
	}

	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)
	slices.Sort(diff.Changed)

	return diff
}

// DiffRuns compares the pages of two stored runs.
func (cdb *CrawlDB) DiffRuns(ctx context.Context, oldID, newID string) (*RunDiff, error) {
	for _, id := range []string{oldID, newID} {
		exists, err := cdb.runExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
	}

	oldPages, err := cdb.GetPageHashes(ctx, oldID)
	if err != nil {
		return nil, err
	}
	newPages, err := cdb.GetPageHashes(ctx, newID)
	if err != nil {
		return nil, err
	}

	diff := ComparePages(oldPages, newPages)
	diff.OldID = oldID
	diff.NewID = newID
	return diff, nil
}

func (cdb *CrawlDB) runExists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawl_runs WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to look up run: %w", err)
	}
	return count > 0, nil
}
