// Package crawler provides the site crawler.
//
// # Architecture
//
// The Spider type walks a site depth-first from a seed URL. It keeps an
// explicit stack instead of recursing, so deep sites cannot exhaust the
// goroutine stack, and pushes each page's links in reverse so they are
// visited in document order. All per-run bookkeeping lives in CrawlState.
//
// # Components
//
//   - Spider: fetches pages, downloads images and drives the traversal
//   - Parser: HTML parser that extracts title, visible text, links and images
//   - CrawlState: visited set, page records and recovered failures
//   - Pacer: politeness delay between page requests
//
// # Scope
//
// A link is followed only if its normalized form starts with the normalized
// seed. This is a plain string prefix: a seed of "https://example.com/docs"
// also admits "https://example.com/docs-old".
//
// # Failures
//
// A malformed seed fails the whole crawl with ErrInvalidURL. Everything
// else is recovered: failed pages and images are recorded in CrawlState
// with their kind and skipped, and the crawl continues with the next URL.
//
// # Usage
//
//	spider := crawler.NewSpider(httpClient, crawler.WithImageDir("images"))
//	pages, err := spider.Crawl(ctx, "https://example.com/docs/")
package crawler
