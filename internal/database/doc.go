// Package database provides SQLite-based storage for sitecrawl.
//
// This package implements the CrawlDB, which stores:
//   - Crawl runs with their complete report as JSON
//   - The pages fetched in each run with their text hash
//   - The images downloaded in each run
//
// The history command uses it to list past runs of a seed and to show
// which pages were added, removed or changed between two runs.
//
// The database is a single SQLite file (modernc.org/sqlite, no cgo) opened
// in WAL mode.
package database
