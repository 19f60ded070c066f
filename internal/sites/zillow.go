package sites

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/model"
)

const zillowBaseURL = "https://www.zillow.com"

// streetAbbr maps street-type words to the abbreviations zillow detail
// URLs use.
var streetAbbr = map[string]string{
	"street": "St", "st": "St",
	"avenue": "Ave", "ave": "Ave",
	"road": "Rd", "rd": "Rd",
	"drive": "Dr", "dr": "Dr",
	"court": "Ct", "ct": "Ct",
	"boulevard": "Blvd", "blvd": "Blvd",
	"place": "Pl", "pl": "Pl",
	"lane": "Ln", "ln": "Ln",
	"terrace": "Ter", "ter": "Ter",
	"parkway": "Pkwy", "pkwy": "Pkwy",
}

// Zillow scrapes zillow.com. Highest consensus priority.
type Zillow struct {
	fetcher  *Fetcher
	baseURL  string
	priority int
}

// NewZillow creates the zillow adapter with any config overrides applied.
func NewZillow(f *Fetcher, ov SiteOverride) *Zillow {
	z := &Zillow{fetcher: f, baseURL: zillowBaseURL, priority: 0}
	if ov.BaseURL != "" {
		z.baseURL = ov.BaseURL
	}
	if ov.Priority != nil {
		z.priority = *ov.Priority
	}
	return z
}

func (z *Zillow) Name() string  { return model.SourceZillow }
func (z *Zillow) Priority() int { return z.priority }

// Fetch tries hyphenated detail-page candidates first (reliable for
// Queens-style addresses), then the search-results page. Always returns a
// snapshot; on total failure it carries only the source tag.
func (z *Zillow) Fetch(ctx context.Context, q Query) model.PropertySnapshot {
	snap := model.PropertySnapshot{Source: model.SourceZillow}

	for _, cand := range z.detailCandidates(q) {
		if z.tryDetailPage(ctx, cand, &snap) && snap.HasSignal() {
			return snap
		}
		if ctx.Err() != nil {
			return snap
		}
	}

	z.trySearchPage(ctx, q, &snap)
	return snap
}

// queensAddrRe matches hyphenated house numbers: "43-52 169 Street".
var queensAddrRe = regexp.MustCompile(`^(\d+)-(\d+)\s+(\d+)\s+([A-Za-z]+)`)

// detailCandidates builds likely homedetails paths for hyphenated
// addresses: "43-52 169 Street" becomes "4352-169th-St".
func (z *Zillow) detailCandidates(q Query) []string {
	m := queensAddrRe.FindStringSubmatch(strings.TrimSpace(q.Street))
	if m == nil {
		return nil
	}
	house := m[1] + m[2]
	ordinal := toOrdinal(m[3])
	abbr, ok := streetAbbr[strings.ToLower(m[4])]
	if !ok {
		abbr = strings.Title(strings.ToLower(m[4])) //nolint:staticcheck
	}

	city := q.City
	if city == "" {
		city = q.Borough
	}
	citySlug := strings.ReplaceAll(city, " ", "-")
	core := fmt.Sprintf("%s-%s-%s-%s-%s", house, ordinal, abbr, citySlug, q.State)

	var candidates []string
	if q.Zip != "" {
		candidates = append(candidates, fmt.Sprintf("%s/homedetails/%s-%s/", z.baseURL, core, q.Zip))
	}
	candidates = append(candidates, fmt.Sprintf("%s/homedetails/%s/", z.baseURL, core))
	return candidates
}

// tryDetailPage fetches one candidate URL, follows the canonical link a
// single hop, and layers extraction into snap.
func (z *Zillow) tryDetailPage(ctx context.Context, cand string, snap *model.PropertySnapshot) bool {
	page, err := z.fetcher.Get(ctx, cand)
	if err != nil {
		zap.L().Debug("zillow detail fetch failed", zap.String("url", cand), zap.Error(err))
		return false
	}
	doc, err := ParseDocument(page.Body)
	if err != nil {
		return false
	}

	finalURL := cand
	if canon := doc.CanonicalURL(); canon != "" && canon != cand {
		if canonPage, err := z.fetcher.Get(ctx, canon); err == nil {
			if canonDoc, err := ParseDocument(canonPage.Body); err == nil {
				doc = canonDoc
				finalURL = canon
			}
		}
	}

	z.parseDetails(doc, snap)
	if snap.HasSignal() && snap.ListingURL == "" {
		snap.ListingURL = finalURL
	}
	return true
}

// trySearchPage scrapes the first property card off the search-results
// page.
func (z *Zillow) trySearchPage(ctx context.Context, q Query, snap *model.PropertySnapshot) {
	city := q.City
	if city == "" {
		city = q.Borough
	}
	var parts []string
	for _, p := range []string{q.Street, city, q.State, q.Zip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	slug := strings.ReplaceAll(strings.Join(parts, ", "), " ", "-")
	searchURL := fmt.Sprintf("%s/homes/%s_rb/", z.baseURL, slug)

	page, err := z.fetcher.Get(ctx, searchURL)
	if err != nil {
		zap.L().Debug("zillow search fetch failed", zap.String("url", searchURL), zap.Error(err))
		return
	}
	doc, err := ParseDocument(page.Body)
	if err != nil {
		return
	}

	card := doc.Find(`article[data-test="property-card"]`).First()
	if card.Length() == 0 {
		z.parseDetails(doc, snap)
		return
	}

	setPrice(snap, card.Find(`span[data-test="property-card-price"]`).Text())
	setAddress(snap, card.Find(`address[data-test="property-card-addr"]`).Text())

	card.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := strings.ToLower(li.Text())
		switch {
		case strings.Contains(text, "bd"):
			setBedrooms(snap, li.Text())
		case strings.Contains(text, "ba"):
			setBathrooms(snap, li.Text())
		case strings.Contains(text, "sqft"):
			setSquareFeet(snap, li.Text())
		}
	})

	if href, ok := card.Find(`a[data-test="property-card-link"]`).First().Attr("href"); ok && href != "" {
		if strings.HasPrefix(href, "/") {
			href = z.baseURL + href
		}
		snap.ListingURL = href
	}
}

// parseDetails layers extraction over a detail page: zestimate and card
// markup first, then JSON-LD, then the embedded Next.js blob, then raw
// text.
func (z *Zillow) parseDetails(doc *Document, snap *model.PropertySnapshot) {
	setPrice(snap, doc.Text(`span[data-test="zestimate-text"]`))

	absorbJSONLD(doc, snap)
	absorbEmbeddedState(doc.EmbeddedState("__NEXT_DATA__"), snap)
	absorbVisibleText(doc.FullText(), snap)
}

// toOrdinal renders "169" as "169th".
func toOrdinal(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	suffix := "th"
	if n%100 < 10 || n%100 > 20 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
