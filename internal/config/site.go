package config

import (
	"errors"
	"maps"
	"strings"
	"time"
)

// SiteConfig holds per-site crawl settings.
// Zero values mean "not set" and fall back to the defaults or CLI flags.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send with every request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Delay overrides the delay between page requests (e.g. "500ms", "2s").
	Delay time.Duration `yaml:"delay,omitempty"`

	// MaxPages overrides the page limit for this site.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

func (s SiteConfig) validate() error {
	if s.Delay < 0 {
		return ErrInvalidCrawlDelay
	}
	if s.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if strings.ContainsAny(s.Cookie, "\r\n") {
		return errors.New("cookie must not contain line breaks")
	}
	return nil
}

// File represents the structure of the .sitecrawl configuration file.
type File struct {
	// Sites maps URL prefixes to their site-specific configurations.
	// A seed uses the entry with the longest key that is a prefix of it,
	// e.g. "https://docs.example.com/" or "https://example.com/blog".
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to all seeds unless overridden by a site entry.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a seed URL: the defaults
// merged with the most specific matching site entry.
func (cf *File) GetSiteConfig(seed string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.match(seed)
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Delay != 0 {
		result.Delay = site.Delay
	}
	if site.MaxPages != 0 {
		result.MaxPages = site.MaxPages
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}

	return result
}

// match returns the site entry with the longest key that prefixes seed.
func (cf *File) match(seed string) (SiteConfig, bool) {
	var (
		best    SiteConfig
		bestLen = -1
	)
	for prefix, site := range cf.Sites {
		if strings.HasPrefix(seed, prefix) && len(prefix) > bestLen {
			best = site
			bestLen = len(prefix)
		}
	}
	return best, bestLen >= 0
}

// Secrets returns the cookie and header values of the defaults and every
// site entry, for masking in logs.
func (cf *File) Secrets() []string {
	var secrets []string
	add := func(s SiteConfig) {
		if s.Cookie != "" {
			secrets = append(secrets, s.Cookie)
		}
		for _, v := range s.Headers {
			if v != "" {
				secrets = append(secrets, v)
			}
		}
	}

	add(cf.Defaults)
	for _, site := range cf.Sites {
		add(site)
	}
	return secrets
}
