package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/model"
)

const redfinBaseURL = "https://www.redfin.com"

// Redfin scrapes redfin.com. The stingray autocomplete endpoint resolves
// exact detail-page URLs without touching the JS-heavy search UI, so it
// goes first.
type Redfin struct {
	fetcher  *Fetcher
	baseURL  string
	priority int
}

// NewRedfin creates the redfin adapter with any config overrides applied.
func NewRedfin(f *Fetcher, ov SiteOverride) *Redfin {
	r := &Redfin{fetcher: f, baseURL: redfinBaseURL, priority: 1}
	if ov.BaseURL != "" {
		r.baseURL = ov.BaseURL
	}
	if ov.Priority != nil {
		r.priority = *ov.Priority
	}
	return r
}

func (r *Redfin) Name() string  { return model.SourceRedfin }
func (r *Redfin) Priority() int { return r.priority }

// Fetch resolves the property via autocomplete, falling back to the
// legacy search page. Always returns a snapshot.
func (r *Redfin) Fetch(ctx context.Context, q Query) model.PropertySnapshot {
	snap := model.PropertySnapshot{Source: model.SourceRedfin}

	if r.tryAutocomplete(ctx, q, &snap) && snap.HasSignal() {
		return snap
	}
	if ctx.Err() != nil {
		return snap
	}

	r.trySearchPage(ctx, q, &snap)
	return snap
}

func (r *Redfin) query(q Query) string {
	city := q.City
	if city == "" {
		city = q.Borough
	} else if q.Borough != "" && !strings.EqualFold(city, q.Borough) {
		city = city + ", " + q.Borough
	}
	var parts []string
	for _, p := range []string{q.Street, city, q.State, q.Zip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// tryAutocomplete hits the stingray location-autocomplete JSON endpoint
// and, when it yields a /home/ path, scrapes that detail page.
func (r *Redfin) tryAutocomplete(ctx context.Context, q Query, snap *model.PropertySnapshot) bool {
	acURL := fmt.Sprintf("%s/stingray/do/location-autocomplete?location=%s",
		r.baseURL, url.QueryEscape(r.query(q)))

	page, err := r.fetcher.Get(ctx, acURL)
	if err != nil {
		zap.L().Debug("redfin autocomplete failed", zap.Error(err))
		return false
	}

	body := strings.TrimSpace(string(page.Body))
	// Stingray responses carry an XSSI protection prefix.
	if strings.HasPrefix(body, ")]}'") {
		if idx := strings.IndexByte(body, '\n'); idx >= 0 {
			body = body[idx+1:]
		} else {
			body = body[4:]
		}
	}

	var data any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		zap.L().Debug("redfin autocomplete parse failed", zap.Error(err))
		return false
	}

	path := findHomePath(data)
	if path == "" {
		return false
	}
	if !strings.HasPrefix(path, "http") {
		path = r.baseURL + path
	}

	detailPage, err := r.fetcher.Get(ctx, path)
	if err != nil {
		zap.L().Debug("redfin detail fetch failed", zap.String("url", path), zap.Error(err))
		return false
	}
	doc, err := ParseDocument(detailPage.Body)
	if err != nil {
		return false
	}

	r.parseDetails(doc, snap)
	if snap.HasSignal() && snap.ListingURL == "" {
		snap.ListingURL = path
	}
	return true
}

// findHomePath walks the autocomplete JSON for the first url or pagePath
// value containing /home/.
func findHomePath(obj any) string {
	switch v := obj.(type) {
	case map[string]any:
		for _, k := range []string{"url", "pagePath"} {
			if s, ok := v[k].(string); ok && strings.Contains(s, "/home/") {
				return s
			}
		}
		for _, child := range v {
			if p := findHomePath(child); p != "" {
				return p
			}
		}
	case []any:
		for _, child := range v {
			if p := findHomePath(child); p != "" {
				return p
			}
		}
	}
	return ""
}

// trySearchPage scrapes the first home card off the legacy search page.
func (r *Redfin) trySearchPage(ctx context.Context, q Query, snap *model.PropertySnapshot) {
	slug := strings.ReplaceAll(strings.ReplaceAll(r.query(q), ",", ""), " ", "-")
	searchURL := fmt.Sprintf("%s/search/%s", r.baseURL, slug)

	page, err := r.fetcher.Get(ctx, searchURL)
	if err != nil {
		zap.L().Debug("redfin search fetch failed", zap.String("url", searchURL), zap.Error(err))
		return
	}
	doc, err := ParseDocument(page.Body)
	if err != nil {
		return
	}

	card := doc.FindClassContains("div", "HomeCard").First()
	if card.Length() == 0 {
		r.parseDetails(doc, snap)
		return
	}

	card.Find("span").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if strings.Contains(strings.ToLower(class), "price") {
			setPrice(snap, s.Text())
		}
	})
	card.Find("div").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if strings.Contains(strings.ToLower(class), "address") {
			setAddress(snap, s.Text())
		}
	})
	absorbVisibleText(doc.FullText(), snap)
}

// parseDetails layers extraction over a redfin page.
func (r *Redfin) parseDetails(doc *Document, snap *model.PropertySnapshot) {
	setPrice(snap, doc.FindClassContains("span", "estimate").First().Text())
	setPrice(snap, doc.FindClassContains("span", "price").First().Text())
	setAddress(snap, doc.FindClassContains("div", "address").First().Text())

	absorbJSONLD(doc, snap)
	absorbVisibleText(doc.FullText(), snap)
}
