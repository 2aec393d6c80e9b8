package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// IsValidURL reports whether rawURL is an absolute URL with both a scheme
// and a host. Relative references, "mailto:" and "javascript:" links and
// data URIs are all rejected.
func IsValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// NormalizeURL normalizes a URL for deduplication.
// The fragment is dropped, scheme and host are lowercased and an empty
// path becomes "/". Unparseable input is returned unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}

	return u.String()
}

// InScope reports whether link belongs to the crawl rooted at base.
//
// This is a literal string-prefix test, not a host or path comparison:
// a base of "https://example.com/docs" also admits "https://example.com/docs2".
// Both arguments are expected to be normalized.
func InScope(base, link string) bool {
	return strings.HasPrefix(link, base)
}

// resolveReference resolves href against base and returns the absolute URL,
// or an empty string when href cannot be parsed.
func resolveReference(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return base.ResolveReference(u).String()
}

// filterPath checks a URL against ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it (return false)
//  2. If follow patterns are set and the path matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func filterPath(targetURL string, ignorePatterns, followPatterns []string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(followPatterns) > 0 {
		for _, pattern := range followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// A trailing "/*" matches the whole subtree and a leading "*." matches by
// extension, so "/api/*" matches "/api/v1/users" and "*.pdf" matches
// "/docs/file.pdf".
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also match the last path element.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
