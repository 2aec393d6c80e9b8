package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// textExcludedElements are elements whose content never counts as visible
// text: scripts, styles and page chrome such as navigation bars and footers.
// Links and images inside them are still collected.
var textExcludedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
}

// Parser extracts crawlable information from HTML content.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// Text is the visible text, whitespace-collapsed and joined with
	// single spaces.
	Text string

	// Links contains the resolved href of every <a> element, in document
	// order. Entries are absolute but not validated.
	Links []string

	// Images contains the resolved src of every <img> element, in document
	// order. Entries are absolute but not validated.
	Images []string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts title, text, links and images
// in a single pass.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:  make([]string, 0),
		Images: make([]string, 0),
	}

	// <base href> changes how relative references resolve.
	base := p.documentBase(doc)

	words := make([]string, 0)

	var walk func(n *html.Node, excluded bool)
	walk = func(n *html.Node, excluded bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = collapseWhitespace(n.FirstChild.Data)
				}
			case "a":
				if href, ok := getAttr(n, "href"); ok {
					if resolved := resolveReference(base, href); resolved != "" {
						result.Links = append(result.Links, resolved)
					}
				}
			case "img":
				if src, ok := getAttr(n, "src"); ok {
					if resolved := resolveReference(base, src); resolved != "" {
						result.Images = append(result.Images, resolved)
					}
				}
			}
			if textExcludedElements[n.Data] {
				excluded = true
			}
		case html.TextNode:
			if !excluded {
				words = append(words, strings.Fields(norm.NFC.String(n.Data))...)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, excluded)
		}
	}

	walk(doc, false)

	result.Text = strings.Join(words, " ")

	return result, nil
}

// documentBase returns the URL relative references resolve against:
// the first <base href> if present, otherwise the page URL.
func (p *Parser) documentBase(doc *html.Node) *url.URL {
	var found *url.URL

	var find func(n *html.Node)
	find = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "base" {
			if href, ok := getAttr(n, "href"); ok {
				if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
					found = p.baseURL.ResolveReference(u)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	if found == nil {
		return p.baseURL
	}
	return found
}

// collapseWhitespace trims s and replaces every whitespace run with a single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// getAttr retrieves an attribute value from an HTML node.
// The boolean reports whether the attribute is present.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
