package sites

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Document wraps a parsed listing page and exposes the lookups the
// adapters layer their extraction on.
type Document struct {
	doc *goquery.Document
}

// ParseDocument parses HTML into a Document. Malformed markup is not an
// error; the parser recovers what it can.
func ParseDocument(body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "sites: parse html")
	}
	return &Document{doc: doc}, nil
}

// Find proxies a CSS selector query.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Text returns the trimmed text of the first node matching selector, or "".
func (d *Document) Text(selector string) string {
	return strings.TrimSpace(d.doc.Find(selector).First().Text())
}

// Attr returns the named attribute of the first node matching selector.
func (d *Document) Attr(selector, name string) string {
	val, _ := d.doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(val)
}

// FullText returns the visible page text with whitespace collapsed to
// single spaces, for regex extraction.
func (d *Document) FullText() string {
	return strings.Join(strings.Fields(d.doc.Text()), " ")
}

// CanonicalURL returns the <link rel="canonical"> href, or "".
func (d *Document) CanonicalURL() string {
	href := d.Attr(`link[rel="canonical"]`, "href")
	if strings.HasPrefix(href, "http") {
		return href
	}
	return ""
}

// JSONLD decodes every application/ld+json block into generic maps.
// Blocks holding arrays are flattened; unparseable blocks are skipped.
func (d *Document) JSONLD() []map[string]any {
	var out []map[string]any
	d.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			out = append(out, obj)
			return
		}
		var list []map[string]any
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			out = append(out, list...)
		}
	})
	return out
}

// EmbeddedState decodes the JSON payload of a script element by id, such
// as the Next.js __NEXT_DATA__ blob. Returns nil when absent or invalid.
func (d *Document) EmbeddedState(id string) map[string]any {
	raw := strings.TrimSpace(d.doc.Find("script#" + id).First().Text())
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

// FindClassContains returns nodes of the given tag whose class attribute
// contains substr, case-insensitively. Listing sites hash their class
// names, so substring matching is the only stable handle.
func (d *Document) FindClassContains(tag, substr string) *goquery.Selection {
	substr = strings.ToLower(substr)
	return d.doc.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return strings.Contains(strings.ToLower(class), substr)
	})
}

// deepFind walks nested maps and slices for the first non-empty value
// under any of the given keys, in key-priority order at each level.
func deepFind(obj any, keys ...string) any {
	switch v := obj.(type) {
	case map[string]any:
		for _, k := range keys {
			if val, ok := v[k]; ok && val != nil && val != "" {
				return val
			}
		}
		for _, child := range v {
			if r := deepFind(child, keys...); r != nil {
				return r
			}
		}
	case []any:
		for _, child := range v {
			if r := deepFind(child, keys...); r != nil {
				return r
			}
		}
	}
	return nil
}
