// Package config provides configuration structures and utilities for sitecrawl.
// It defines the crawl settings, the report and logging preferences, and the
// optional .sitecrawl file with per-site overrides.
package config
