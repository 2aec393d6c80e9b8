package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Crawl error sentinels.
// Every *Error matches exactly one of these with errors.Is, so callers can
// tell the failure modes apart without inspecting messages.
var (
	// ErrInvalidURL is returned for a URL without a scheme or host.
	// A malformed seed is rejected before any network call; malformed links
	// and image sources are skipped.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrFetchFailure is recorded when a page request fails or returns a
	// non-success status. The crawl does not descend below that page.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrDownloadFailure is recorded when an image cannot be downloaded or
	// written to disk. Only that image is skipped.
	ErrDownloadFailure = errors.New("download failure")
)

// Error is a crawl error bound to the URL that caused it.
type Error struct {
	// Kind classifies the error.
	Kind model.FailureKind

	// URL is the page, link or image URL involved.
	URL string

	// StatusCode is the HTTP status for status-based failures, 0 otherwise.
	StatusCode int

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s: status code %d", e.Kind, e.URL, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.URL)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel that corresponds to the error kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case model.FailureInvalidURL:
		return target == ErrInvalidURL
	case model.FailureFetch:
		return target == ErrFetchFailure
	case model.FailureDownload:
		return target == ErrDownloadFailure
	default:
		return false
	}
}

// Failure converts the error into its serializable form.
func (e *Error) Failure() model.Failure {
	return model.Failure{
		URL:     e.URL,
		Kind:    e.Kind,
		Message: e.Error(),
	}
}

func invalidURLError(rawURL string, cause error) *Error {
	return &Error{Kind: model.FailureInvalidURL, URL: rawURL, Cause: cause}
}

func fetchError(pageURL string, cause error) *Error {
	return &Error{Kind: model.FailureFetch, URL: pageURL, Cause: cause}
}

func fetchStatusError(pageURL string, status int) *Error {
	return &Error{Kind: model.FailureFetch, URL: pageURL, StatusCode: status}
}

func downloadError(imageURL string, cause error) *Error {
	return &Error{Kind: model.FailureDownload, URL: imageURL, Cause: cause}
}

func downloadStatusError(imageURL string, status int) *Error {
	return &Error{Kind: model.FailureDownload, URL: imageURL, StatusCode: status}
}
