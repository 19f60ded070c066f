// Package textmine recovers structured comparable-sale records from
// unstructured search-result snippets. It is the pipeline's last resort,
// invoked only when the structured sources produced too few comps.
package textmine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/valuation-cli/internal/model"
)

// MaxComparables bounds a single extraction pass.
const MaxComparables = 5

// Snippet chunks arrive "---"-delimited, each carrying Title/URL/Content
// lines the way search-tool output formats them.
var (
	chunkSplitRe = regexp.MustCompile(`\n---\n|\n\s*---\s*\n|\n---\s*$`)

	urlRe     = regexp.MustCompile(`URL:\s*(\S+)`)
	titleRe   = regexp.MustCompile(`Title:\s*(.+)`)
	contentRe = regexp.MustCompile(`(?s)Content:\s*(.*)`)

	// Full address: house number, street, city, two-letter state,
	// optional zip.
	addrFullRe = regexp.MustCompile(`(\d{1,6}[^\n,]*?,\s*[A-Za-z .\-]+,\s*[A-Z]{2}(?:\s*\d{5})?)`)
	// Fallback: house number + street with a recognizable street type.
	addrStreetRe = regexp.MustCompile(`(?i)(\d{1,6}[^\n,]*?\s+[A-Za-z0-9'\-]+\s*(?:St|Street|Ave|Avenue|Rd|Road|Blvd|Boulevard|Dr|Drive|Ln|Lane|Ct|Court)\b[^\n,]*)`)

	bedsRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:bed|beds|bedroom|bedrooms)\b`)
	bathsRe = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(?:bath|baths|bathroom|bathrooms)\b`)
	sqftRe  = regexp.MustCompile(`(?i)([\d,]+)\s*(?:sq\s*ft|sqft|square\s*foot|square\s*feet)\b`)

	// Price heuristics tried in order of confidence.
	priceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)last\s+sold\s+for\s*\$([\d,]+)`),
		regexp.MustCompile(`(?i)sold\s+for\s*\$([\d,]+)`),
		regexp.MustCompile(`(?i)list\s*price\s*(?:of)?\s*\$([\d,]+)`),
		regexp.MustCompile(`\$\s*([\d,]+)`),
	}

	dateOnRe   = regexp.MustCompile(`(?i)(?:on|in)\s*([A-Za-z]{3,9}\s+\d{1,2},\s*\d{4}|[A-Za-z]{3,9}\s+\d{4})`)
	dateSoldRe = regexp.MustCompile(`(?i)SOLD\s+([A-Za-z]{3,9}\s+\d{1,2},\s*\d{4}|[A-Za-z]{3,9}\s+\d{4})`)

	// Aggregator bullet layout: "$1,998,000 · 3,430 · 4224 164th St":
	// sqft sits between the price and the house number.
	aggSqftRe = regexp.MustCompile(`\$\s*[\d,]+\s*[·•]\s*([\d,]+)\s*[·•]\s*\d{1,6}`)
)

// ExtractComparables mines comparable sales from raw snippet text. The
// pass is finite (at most MaxComparables records), idempotent, and keeps
// no state between calls. A chunk yields a record only when it has an
// address plus at least one of price, date, URL, or square footage.
func ExtractComparables(text string) []model.ComparableSale {
	if text == "" {
		return nil
	}

	var results []model.ComparableSale
	for _, chunk := range chunkSplitRe.Split(text, -1) {
		chunk = strings.TrimSpace(chunk)
		if len(chunk) < 30 {
			continue
		}

		comp := extractOne(chunk)
		if comp.Valid() {
			results = append(results, comp)
		}
		if len(results) >= MaxComparables {
			break
		}
	}
	return results
}

func extractOne(chunk string) model.ComparableSale {
	comp := model.ComparableSale{Provenance: model.ProvenanceTextMined}

	if m := urlRe.FindStringSubmatch(chunk); m != nil {
		comp.ListingURL = strings.TrimSpace(m[1])
	}

	var title string
	if m := titleRe.FindStringSubmatch(chunk); m != nil {
		title = strings.TrimSpace(m[1])
	}
	comp.Address = findAddress(title, chunk)

	// Numeric fields come out of the content body when one is labeled,
	// otherwise the whole chunk.
	content := chunk
	if m := contentRe.FindStringSubmatch(chunk); m != nil {
		content = strings.TrimSpace(m[1])
	}

	if m := bedsRe.FindStringSubmatch(content); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			comp.Bedrooms = &v
		}
	}
	if m := bathsRe.FindStringSubmatch(content); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			comp.Bathrooms = &v
		}
	}
	if m := sqftRe.FindStringSubmatch(content); m != nil {
		if v, ok := parseThousands(m[1]); ok {
			comp.SquareFeet = &v
		}
	}

	for _, re := range priceRes {
		if m := re.FindStringSubmatch(content); m != nil {
			if v, ok := parseThousands(m[1]); ok {
				comp.SalePrice = &v
			}
			break
		}
	}

	if m := dateOnRe.FindStringSubmatch(content); m != nil {
		comp.SaleDate = strings.TrimSpace(m[1])
	} else if m := dateSoldRe.FindStringSubmatch(content); m != nil {
		comp.SaleDate = strings.TrimSpace(m[1])
	}

	if comp.SquareFeet == nil {
		if m := aggSqftRe.FindStringSubmatch(content); m != nil {
			if v, ok := parseThousands(m[1]); ok && v >= 400 && v <= 10000 {
				comp.SquareFeet = &v
			}
		}
	}

	return comp
}

// findAddress prefers the full city-state pattern, searching the title
// line before the whole chunk, and only then falls back to the bare
// street pattern in the same order.
func findAddress(title, chunk string) string {
	sources := []string{title, chunk}
	for _, source := range sources {
		if m := addrFullRe.FindStringSubmatch(source); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	for _, source := range sources {
		if m := addrStreetRe.FindStringSubmatch(source); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func parseThousands(s string) (int, bool) {
	v, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, false
	}
	return v, true
}
