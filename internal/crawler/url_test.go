package crawler

import (
	"testing"
)

// TestIsValidURL tests absolute URL validation.
func TestIsValidURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"https URL", "https://example.com/page", true},
		{"http URL with port", "http://127.0.0.1:8080/", true},
		{"no path", "https://example.com", true},
		{"relative path", "/about", false},
		{"no scheme", "example.com/page", false},
		{"mailto", "mailto:someone@example.com", false},
		{"javascript", "javascript:void(0)", false},
		{"data URI", "data:image/png;base64,AAAA", false},
		{"empty", "", false},
		{"unparseable", "http://[::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsValidURL(tt.input); got != tt.want {
				t.Errorf("IsValidURL(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestNormalizeURL tests URL normalization.
func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"removes fragment", "https://example.com/page#section", "https://example.com/page"},
		{"lowercase scheme", "HTTPS://example.com/page", "https://example.com/page"},
		{"lowercase host", "https://EXAMPLE.COM/Page", "https://example.com/Page"},
		{"empty path becomes root", "https://example.com", "https://example.com/"},
		{"preserves query", "https://example.com/search?q=test", "https://example.com/search?q=test"},
		{"preserves trailing slash", "https://example.com/docs/", "https://example.com/docs/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := NormalizeURL(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestInScope tests the textual prefix scope rule.
func TestInScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		link string
		want bool
	}{
		{"same page", "https://example.com/docs", "https://example.com/docs", true},
		{"child page", "https://example.com/docs/", "https://example.com/docs/intro", true},
		{"sibling sharing prefix", "https://example.com/docs", "https://example.com/docs2", true},
		{"parent page", "https://example.com/docs/", "https://example.com/", false},
		{"other host", "https://example.com/", "https://other.com/", false},
		{"other scheme", "https://example.com/", "http://example.com/", false},
		{"subdomain", "https://example.com/", "https://blog.example.com/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := InScope(tt.base, tt.link); got != tt.want {
				t.Errorf("InScope(%q, %q) = %v, want %v", tt.base, tt.link, got, tt.want)
			}
		})
	}

	// A host-only seed is normalized to end in "/", so hosts that merely
	// start with the seed host are out of scope.
	t.Run("host-only seed gains a trailing slash", func(t *testing.T) {
		t.Parallel()

		base := NormalizeURL("https://example.com")
		if base != "https://example.com/" {
			t.Fatalf("expected normalized base with trailing slash, got %q", base)
		}
		if InScope(base, NormalizeURL("https://example.com.evil.test/")) {
			t.Error("expected lookalike host to be out of scope")
		}
		if InScope(base, NormalizeURL("https://example.com:8443/")) {
			t.Error("expected other port to be out of scope")
		}
		if !InScope(base, NormalizeURL("https://example.com")) {
			t.Error("expected the seed itself to be in scope")
		}
	})
}

// TestMatchPattern tests glob pattern matching.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		// Prefix patterns with /*
		{"admin prefix match", "/admin/*", "/admin/dashboard", true},
		{"admin prefix exact", "/admin/*", "/admin", true},
		{"admin prefix no match", "/admin/*", "/user/profile", false},
		{"admin prefix partial no match", "/admin/*", "/administrator", false},
		{"nested admin", "/admin/*", "/admin/users/edit", true},

		// Extension patterns with *.
		{"pdf extension", "*.pdf", "/docs/file.pdf", true},
		{"pdf extension nested", "*.pdf", "/a/b/c/report.pdf", true},
		{"pdf extension no match", "*.pdf", "/docs/file.txt", false},

		// Exact match patterns
		{"exact match", "/logout", "/logout", true},
		{"exact no match", "/logout", "/login", false},

		// Wildcards
		{"single character", "/api/v?/users", "/api/v1/users", true},
		{"single character no match", "/api/v?/users", "/api/v10/users", false},
		{"base name wildcard", "logout*", "/account/logout-now", true},

		// Root path
		{"root path", "/", "/", true},
		{"root no match prefix", "/admin/*", "/", false},

		// Malformed pattern
		{"bad pattern", "[", "/[", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := matchPattern(tt.pattern, tt.path)
			if got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

// TestFilterPath tests URL filtering based on patterns.
func TestFilterPath(t *testing.T) {
	t.Parallel()

	t.Run("no patterns allows all", func(t *testing.T) {
		t.Parallel()

		if !filterPath("https://example.com/any/path", nil, nil) {
			t.Error("expected all URLs to be allowed when no patterns set")
		}
	})

	t.Run("ignore patterns block matching URLs", func(t *testing.T) {
		t.Parallel()

		ignore := []string{"/admin/*", "*.pdf"}
		tests := []struct {
			url  string
			want bool
		}{
			{"https://example.com/admin/dashboard", false},
			{"https://example.com/docs/file.pdf", false},
			{"https://example.com/public/page", true},
		}

		for _, tt := range tests {
			if got := filterPath(tt.url, ignore, nil); got != tt.want {
				t.Errorf("filterPath(%q) = %v, want %v", tt.url, got, tt.want)
			}
		}
	})

	t.Run("follow patterns restrict to matching URLs", func(t *testing.T) {
		t.Parallel()

		follow := []string{"/api/*", "/public/*"}
		tests := []struct {
			url  string
			want bool
		}{
			{"https://example.com/api/v1/users", true},
			{"https://example.com/public/page", true},
			{"https://example.com/private/data", false},
		}

		for _, tt := range tests {
			if got := filterPath(tt.url, nil, follow); got != tt.want {
				t.Errorf("filterPath(%q) = %v, want %v", tt.url, got, tt.want)
			}
		}
	})

	t.Run("ignore takes precedence over follow", func(t *testing.T) {
		t.Parallel()

		ignore := []string{"/api/internal/*"}
		follow := []string{"/api/*"}

		if !filterPath("https://example.com/api/v1/users", ignore, follow) {
			t.Error("expected followed path to be allowed")
		}
		if filterPath("https://example.com/api/internal/secret", ignore, follow) {
			t.Error("expected ignored path to be rejected despite matching follow")
		}
	})

	t.Run("invalid URL returns false", func(t *testing.T) {
		t.Parallel()

		if filterPath("://invalid", nil, nil) {
			t.Error("expected invalid URL to return false")
		}
	})

	t.Run("empty path treated as root", func(t *testing.T) {
		t.Parallel()

		if !filterPath("https://example.com", nil, []string{"/"}) {
			t.Error("expected empty path to match root pattern")
		}
	})
}

// TestImageFileName tests local file naming for images.
func TestImageFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "https://example.com/img/logo.png", "logo.png", false},
		{"query ignored", "https://example.com/a/photo.jpg?size=large", "photo.jpg", false},
		{"no extension", "https://example.com/avatar", "avatar", false},
		{"root path", "https://example.com/", "", true},
		{"no path", "https://example.com", "", true},
		{"trailing slash uses last element", "https://example.com/img/", "img", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := imageFileName(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got name %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("imageFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
