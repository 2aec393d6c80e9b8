// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls a website depth-first from a seed URL, staying below the
// seed's URL prefix, and records the visible text and images of every page.
//
// Usage:
//
//	sitecrawl crawl <url>
//	sitecrawl crawl <url> <url> --batch 2
//	sitecrawl history <url>
//
// See --help for all available options.
package main

// main is the entry point for sitecrawl.
func main() {
	Execute()
}
