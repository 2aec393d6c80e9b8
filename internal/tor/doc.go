// Package tor provides the optional proxy transport for sitecrawl.
//
// Crawls normally go straight to the site. With --proxy the crawler's HTTP
// client dials through an external SOCKS5 proxy, and with --tor it dials
// through a Tor daemon embedded with tornago. In both cases the proxy is
// checked with a SOCKS5 handshake before the crawl starts.
//
// The package is designed to be used with dependency injection: create a
// Client and pass its HTTP client to the crawler rather than using global
// state.
package tor
