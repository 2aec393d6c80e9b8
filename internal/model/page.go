package model

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// PageRecord represents one successfully fetched page.
// Records are appended to a crawl in depth-first discovery order and are
// never modified afterwards.
type PageRecord struct {
	// URL is the normalized URL the page was fetched from.
	URL string `json:"url"`

	// Text is the visible text of the page, whitespace-collapsed and joined
	// with single spaces. Script, style and navigational elements are excluded.
	Text string `json:"text"`

	// Images contains the local file paths of the images that were
	// downloaded successfully, in the order they appear in the page.
	Images []string `json:"images"`

	// Title is the page title from the <title> tag.
	Title string `json:"title,omitempty"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type,omitempty"`

	// TextHash is the SHA-256 hash of Text.
	// Used to detect content changes between crawl runs.
	TextHash string `json:"text_hash,omitempty"`

	// ImageDetails holds per-image metadata for every entry in Images.
	ImageDetails []ImageRecord `json:"image_details,omitempty"`
}

// ImageRecord describes an image downloaded from a page.
type ImageRecord struct {
	// SourceURL is the absolute URL the image was downloaded from.
	SourceURL string `json:"source_url"`

	// Path is the local file path the image was written to.
	Path string `json:"path"`

	// Size is the number of bytes written.
	Size int64 `json:"size"`

	// ContentType is the Content-Type reported by the server.
	ContentType string `json:"content_type,omitempty"`

	// EXIF contains selected EXIF tags (camera, software, timestamps, GPS).
	// Nil when the image has no EXIF data.
	EXIF map[string]string `json:"exif,omitempty"`
}

// FailureKind classifies a recovered crawl error.
type FailureKind string

const (
	// FailureInvalidURL is recorded for a malformed seed, link or image URL.
	FailureInvalidURL FailureKind = "invalid_url"

	// FailureFetch is recorded when a page could not be fetched or returned
	// a non-success status. The branch below that page is not explored.
	FailureFetch FailureKind = "fetch_failure"

	// FailureDownload is recorded when an image could not be downloaded.
	// Only that image is skipped.
	FailureDownload FailureKind = "download_failure"
)

// Failure is a recovered error observed during a crawl.
type Failure struct {
	// URL is the page or image URL that failed.
	URL string `json:"url"`

	// Kind classifies the failure.
	Kind FailureKind `json:"kind"`

	// Message is the error text.
	Message string `json:"message"`
}

// ComputeTextHash calculates and sets the SHA-256 hash of the page text.
// An empty text produces an empty hash.
func (p *PageRecord) ComputeTextHash() {
	if p.Text == "" {
		p.TextHash = ""
		return
	}

	hash := sha256.Sum256([]byte(p.Text))
	p.TextHash = hex.EncodeToString(hash[:])
}

// TextLength returns the length of the page text in characters.
func (p *PageRecord) TextLength() int {
	return len([]rune(p.Text))
}

// ImageCount returns the number of downloaded images.
func (p *PageRecord) ImageCount() int {
	return len(p.Images)
}

// Clone returns a deep copy of the record.
// The crawler hands out clones so that callers cannot mutate its state.
func (p PageRecord) Clone() PageRecord {
	c := p
	c.Images = slices.Clone(p.Images)
	if p.ImageDetails != nil {
		c.ImageDetails = make([]ImageRecord, len(p.ImageDetails))
		for i, img := range p.ImageDetails {
			c.ImageDetails[i] = img
			if img.EXIF != nil {
				c.ImageDetails[i].EXIF = make(map[string]string, len(img.EXIF))
				for k, v := range img.EXIF {
					c.ImageDetails[i].EXIF[k] = v
				}
			}
		}
	}
	return c
}

// IsHTMLContentType reports whether a Content-Type header value denotes HTML.
// An empty value is treated as HTML because many servers omit the header.
func IsHTMLContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") ||
		strings.HasPrefix(ct, "application/xhtml+xml")
}
