// internal/scraper/document.go
package scraper

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document wraps a parsed HTML document and is the only way the engine
// touches the element tree
type Document struct {
	document *goquery.Document
	baseURL  *url.URL

	fingerprintOnce sync.Once
	fingerprint     string
}

// NewDocument parses an HTML string
func NewDocument(content string) (*Document, error) {
	return NewDocumentFromReader(strings.NewReader(content))
}

// NewDocumentFromReader parses HTML from r
func NewDocumentFromReader(r io.Reader) (*Document, error) {
	if r == nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", ErrNilDocument)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{document: doc}, nil
}

// NewDocumentFromNode wraps an already parsed node tree
func NewDocumentFromNode(root *html.Node) (*Document, error) {
	if root == nil {
		return nil, ErrNilDocument
	}
	return &Document{document: goquery.NewDocumentFromNode(root)}, nil
}

// WithBaseURL records the URL the document was fetched from. Relative
// references found in this document are resolved against it when the engine
// has no base URL of its own.
func (d *Document) WithBaseURL(raw string) (*Document, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	d.baseURL = u
	return d, nil
}

// BaseURL returns the recorded base URL, or nil
func (d *Document) BaseURL() *url.URL {
	return d.baseURL
}

// Fingerprint hashes the whole serialized document. The tree is never
// mutated, so the value is computed once.
func (d *Document) Fingerprint() string {
	d.fingerprintOnce.Do(func() {
		d.fingerprint = Fingerprint(serialize(d.document.Selection), 0)
	})
	return d.fingerprint
}

// Root returns the document selection
func (d *Document) Root() *goquery.Selection {
	return d.document.Selection
}

// Whole returns a scope covering the entire document
func (d *Document) Whole() SearchScope {
	return SearchScope{Selection: d.document.Selection, Document: d, Kind: ScopeDocument}
}

// Within returns a container scope for sel, which must belong to d
func (d *Document) Within(sel *goquery.Selection) SearchScope {
	return SearchScope{Selection: sel, Document: d, Kind: ScopeContainer}
}

// Find evaluates a single selector within the whole document
func (d *Document) Find(selector string) (*goquery.Selection, error) {
	return query(d.document.Selection, selector)
}

// Html serializes the whole document
func (d *Document) Html() (string, error) {
	return goquery.OuterHtml(d.document.Selection)
}

// Text returns the concatenated text of the document
func (d *Document) Text() string {
	return d.document.Text()
}

// serialize renders the scope for fingerprinting. The document node itself
// has no outer HTML, so its children are rendered instead.
func serialize(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	var b strings.Builder
	for _, n := range sel.Nodes {
		if n.Type == html.DocumentNode {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				_ = html.Render(&b, c)
			}
			continue
		}
		_ = html.Render(&b, n)
	}
	return b.String()
}

// isXPath reports whether a selector should be evaluated as XPath
func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "xpath:") ||
		strings.HasPrefix(selector, "/") ||
		strings.HasPrefix(selector, "./") ||
		strings.HasPrefix(selector, "(")
}

// query evaluates one selector against scope. Compile errors and panics raised
// by the selector engines are returned as errors.
func query(scope *goquery.Selection, selector string) (result *goquery.Selection, err error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, ErrEmptySelector
	}
	if scope == nil {
		return nil, ErrNilScope
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("selector %q panicked: %v", selector, r)
		}
	}()

	if isXPath(selector) {
		return queryXPath(scope, strings.TrimPrefix(selector, "xpath:"))
	}

	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return scope.FindMatcher(matcher), nil
}

func queryXPath(scope *goquery.Selection, expr string) (*goquery.Selection, error) {
	var found []*html.Node
	seen := make(map[*html.Node]struct{})
	for _, n := range scope.Nodes {
		nodes, err := htmlquery.QueryAll(n, expr)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
		}
		for _, m := range nodes {
			if m.Type != html.ElementNode {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			found = append(found, m)
		}
	}
	// keep only descendants so XPath obeys the same scoping as CSS
	return scope.FindNodes(found...), nil
}

// attrOr returns the trimmed attribute value or "" when missing
func attrOr(sel *goquery.Selection, name string) string {
	v, ok := sel.Attr(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
