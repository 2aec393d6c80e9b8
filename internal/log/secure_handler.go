package log

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// MaskValue replaces every redacted value.
const MaskValue = "***REDACTED***"

// minSecretLen is the shortest configured secret that is masked by value.
// Shorter values would mask unrelated text.
const minSecretLen = 4

// credentialKeys are attribute keys and request header names whose values
// carry credentials. They are masked both as attribute keys and as entries
// of a logged headers map. Matching is case-insensitive.
var credentialKeys = map[string]bool{
	"api_key":             true,
	"api-key":             true,
	"apikey":              true,
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-csrf-token":        true,
}

// credentialKeywords mask any attribute key that contains them, such as
// "site_cookie" or "access_token". "key" alone is left out because crawl
// logs use keys like "cache_key".
var credentialKeywords = []string{
	"cookie", "token", "secret", "password", "passwd", "auth", "credential", "session", "private",
}

// credentialQueryParams are masked inside logged page and image URLs.
var credentialQueryParams = []string{
	"token", "key", "secret", "password", "passwd", "auth", "session", "sig", "signature",
}

// credentialValues match header values that are credentials whatever key
// they are logged under.
var credentialValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^(bearer|basic|token)\s+\S+`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// SecureHandler is an slog.Handler that masks credentials before handing
// records to the wrapped handler (text, JSON or charmbracelet).
//
// Besides key and value rules it masks every occurrence of the configured
// secrets: the cookies and header values taken from the .sitecrawl file,
// which can otherwise leak through error messages of failed requests.
type SecureHandler struct {
	handler slog.Handler
	secrets []string
}

// NewSecureHandler wraps handler, or slog.Default's handler when nil.
func NewSecureHandler(handler slog.Handler, secrets ...string) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}

	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if len(s) >= minSecretLen && !slices.Contains(kept, s) {
			kept = append(kept, s)
		}
	}
	// Longest first so a secret containing another is masked whole.
	slices.SortFunc(kept, func(a, b string) int { return len(b) - len(a) })

	return &SecureHandler{handler: handler, secrets: kept}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's message and attributes, then passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, h.maskSecrets(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs masks attrs before attaching them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized), secrets: h.secrets}
}

// WithGroup opens a group on the wrapped handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), secrets: h.secrets}
}

func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		sanitized := make([]slog.Attr, len(group))
		for i, ga := range group {
			sanitized[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if isCredentialKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.sanitizeString(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]string:
			return h.headersAttr(a.Key, v)
		case error:
			msg := v.Error()
			if masked := h.sanitizeString(msg); masked != msg {
				return slog.String(a.Key, masked)
			}
		}
	}

	return a
}

// headersAttr logs a request header map as a group with credential
// headers masked.
func (h *SecureHandler) headersAttr(key string, headers map[string]string) slog.Attr {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	slices.Sort(names)

	attrs := make([]slog.Attr, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, h.sanitizeAttr(slog.String(name, headers[name])))
	}
	return slog.Attr{Key: key, Value: slog.GroupValue(attrs...)}
}

// sanitizeString masks s entirely when it looks like a credential, and
// otherwise masks configured secrets and URL credentials inside it.
func (h *SecureHandler) sanitizeString(s string) string {
	if isCredentialValue(s) {
		return MaskValue
	}
	if redacted, ok := redactURL(s); ok {
		s = redacted
	}
	return h.maskSecrets(s)
}

func (h *SecureHandler) maskSecrets(s string) string {
	for _, secret := range h.secrets {
		s = strings.ReplaceAll(s, secret, MaskValue)
	}
	return s
}

func isCredentialKey(key string) bool {
	lower := strings.ToLower(key)
	return credentialKeys[lower] || containsSensitiveKeyword(lower)
}

// containsSensitiveKeyword reports whether a lowercased key contains one of
// credentialKeywords.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range credentialKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isCredentialValue(value string) bool {
	for _, pattern := range credentialValues {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// redactURL masks the password and credential query parameters of an
// absolute URL. It reports false when value is not a URL or needs no change.
func redactURL(value string) (string, bool) {
	if !strings.Contains(value, "://") {
		return "", false
	}

	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return "", false
	}

	changed := false
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), MaskValue)
		changed = true
	}

	if u.RawQuery != "" {
		query := u.Query()
		masked := false
		for name := range query {
			if isCredentialQueryParam(name) {
				query.Set(name, MaskValue)
				masked = true
			}
		}
		if masked {
			u.RawQuery = query.Encode()
			changed = true
		}
	}

	if !changed {
		return "", false
	}
	return u.String(), true
}

func isCredentialQueryParam(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range credentialQueryParams {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
