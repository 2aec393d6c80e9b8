// Package model defines the core data structures used throughout sitecrawl.
//
// This package contains the following main types:
//   - PageRecord: One successfully fetched page with its visible text and images
//   - ImageRecord: A downloaded image and the metadata extracted from it
//   - Failure: A recovered per-page or per-image error
//   - CrawlReport: The result of crawling one seed URL
//
// The crawler, pipeline, report and database packages share these types.
// All of them serialize to JSON for report output and database storage.
package model
