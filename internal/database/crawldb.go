package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/imagemeta"
	"github.com/nao1215/sitecrawl/internal/model"
)

// DBFileName is the name of the database file inside the database directory.
const DBFileName = "sitecrawl.db"

// CrawlDB provides SQLite-based storage for crawl reports.
//
// Every crawl run is stored twice: once as the complete report JSON, which
// is what the history command loads back, and once broken down into the
// pages and images tables, which keep run comparison cheap.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	// Concurrent readers (the history command) wait for a running crawl
	// instead of failing with SQLITE_BUSY.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; batch crawls save concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run; report_json holds the complete report
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		page_count INTEGER NOT NULL DEFAULT 0,
		visited_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		image_count INTEGER NOT NULL DEFAULT 0,
		timed_out INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON crawl_runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Pages fetched in a run, in discovery order
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		status_code INTEGER,
		content_type TEXT,
		text_hash TEXT,
		text_length INTEGER NOT NULL DEFAULT 0,
		image_count INTEGER NOT NULL DEFAULT 0,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	-- Images downloaded in a run
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		page_url TEXT NOT NULL,
		source_url TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		content_type TEXT,
		has_location INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_images_run ON images(run_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// timeLayout is a fixed-width UTC layout so that stored timestamps sort
// lexicographically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// SaveCrawlReport stores a crawl report and its pages and images in one
// transaction. Saving the same run ID twice is an error.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (err error) {
	if report.Error != nil && report.ErrorMessage == "" {
		report.ErrorMessage = report.Error.Error()
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (id, seed, started_at, finished_at, page_count, visited_count,
		failure_count, image_count, timed_out, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Seed,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		len(report.Pages),
		report.VisitedCount,
		len(report.Failures),
		report.TotalImages(),
		report.TimedOut,
		report.ErrorMessage,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}

	for i := range report.Pages {
		page := &report.Pages[i]

		_, err = tx.ExecContext(ctx, `
		INSERT INTO pages (run_id, position, url, title, status_code, content_type,
			text_hash, text_length, image_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.ID, i, page.URL, page.Title, page.StatusCode, page.ContentType,
			page.TextHash, page.TextLength(), page.ImageCount(),
		)
		if err != nil {
			return fmt.Errorf("failed to save page %s: %w", page.URL, err)
		}

		for _, img := range page.ImageDetails {
			_, err = tx.ExecContext(ctx, `
			INSERT INTO images (run_id, page_url, source_url, path, size, content_type, has_location)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
				report.ID, page.URL, img.SourceURL, img.Path, img.Size, img.ContentType,
				imagemeta.HasLocation(img.EXIF),
			)
			if err != nil {
				return fmt.Errorf("failed to save image %s: %w", img.SourceURL, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crawl report: %w", err)
	}
	return nil
}

// GetCrawlReport retrieves a crawl report by run ID.
// It returns nil without error if the run does not exist.
func (cdb *CrawlDB) GetCrawlReport(ctx context.Context, id string) (*model.CrawlReport, error) {
	row := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, id)
	return scanReport(row)
}

// GetLatestCrawlReport retrieves the most recent crawl report for a seed.
// It returns nil without error if the seed was never crawled.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, seed string) (*model.CrawlReport, error) {
	row := cdb.db.QueryRowContext(ctx, `
	SELECT report_json FROM crawl_runs
	WHERE seed = ?
	ORDER BY started_at DESC
	LIMIT 1
	`, seed)
	return scanReport(row)
}

func scanReport(row *sql.Row) (*model.CrawlReport, error) {
	var reportJSON string
	err := row.Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListSeeds returns every seed that has at least one stored run.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM crawl_runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// RunMetadata contains summary information about a stored crawl run.
// It is used for displaying history without loading the full report.
type RunMetadata struct {
	ID           string
	Seed         string
	StartedAt    time.Time
	FinishedAt   time.Time
	PageCount    int
	VisitedCount int
	FailureCount int
	ImageCount   int
	TimedOut     bool
	Error        string
}

// GetRunHistory retrieves run metadata for a seed, newest first.
func (cdb *CrawlDB) GetRunHistory(ctx context.Context, seed string) ([]RunMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, seed, started_at, finished_at, page_count, visited_count,
		failure_count, image_count, timed_out, error
	FROM crawl_runs
	WHERE seed = ?
	ORDER BY started_at DESC
	`, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta       RunMetadata
			startedAt  string
			finishedAt sql.NullString
			errText    sql.NullString
		)

		if err := rows.Scan(&meta.ID, &meta.Seed, &startedAt, &finishedAt,
			&meta.PageCount, &meta.VisitedCount, &meta.FailureCount, &meta.ImageCount,
			&meta.TimedOut, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		meta.FinishedAt = parseTimestamp(finishedAt.String)
		meta.Error = errText.String

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetPageHashes returns the text hash of every page of a run, keyed by URL.
func (cdb *CrawlDB) GetPageHashes(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url, text_hash FROM pages WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get page hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var (
			url  string
			hash sql.NullString
		)
		if err := rows.Scan(&url, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan page hash: %w", err)
		}
		hashes[url] = hash.String
	}

	return hashes, rows.Err()
}

// CountImagesWithLocation returns how many images of a run carry GPS data.
func (cdb *CrawlDB) CountImagesWithLocation(ctx context.Context, runID string) (int, error) {
	var count int
	err := cdb.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM images WHERE run_id = ? AND has_location = 1`, runID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
