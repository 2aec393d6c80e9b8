// Package pipeline runs a crawl and its follow-up steps for one or more seeds.
//
// Each seed is processed by a Pipeline of Steps that share a
// model.CrawlReport:
//   - CrawlStep: depth-first crawl of the seed (pages, failures, images)
//   - ChunkStep: splits page text into overlapping chunks
//
// BatchProcessor runs the pipelines of several seeds with bounded
// concurrency using errgroup.
package pipeline
