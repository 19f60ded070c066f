package sites

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/model"
)

const streeteasyBaseURL = "https://streeteasy.com"

// StreetEasy scrapes streeteasy.com. NYC-only coverage, so it defaults
// the locality to New York and carries the lowest consensus priority.
type StreetEasy struct {
	fetcher  *Fetcher
	baseURL  string
	priority int
}

// NewStreetEasy creates the streeteasy adapter with any config overrides
// applied.
func NewStreetEasy(f *Fetcher, ov SiteOverride) *StreetEasy {
	s := &StreetEasy{fetcher: f, baseURL: streeteasyBaseURL, priority: 2}
	if ov.BaseURL != "" {
		s.baseURL = ov.BaseURL
	}
	if ov.Priority != nil {
		s.priority = *ov.Priority
	}
	return s
}

func (s *StreetEasy) Name() string  { return model.SourceStreetEasy }
func (s *StreetEasy) Priority() int { return s.priority }

// Fetch scrapes the search-results page for the first listing card.
// Always returns a snapshot.
func (s *StreetEasy) Fetch(ctx context.Context, q Query) model.PropertySnapshot {
	snap := model.PropertySnapshot{Source: model.SourceStreetEasy}

	locality := q.City
	if locality == "" {
		locality = q.Borough
	}
	if locality == "" {
		locality = "New York"
	}
	var parts []string
	for _, p := range []string{q.Street, locality, q.Zip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	query := strings.ReplaceAll(strings.Join(parts, " "), " ", "+")
	searchURL := fmt.Sprintf("%s/search?search_string=%s", s.baseURL, query)

	page, err := s.fetcher.Get(ctx, searchURL)
	if err != nil {
		zap.L().Debug("streeteasy search fetch failed", zap.String("url", searchURL), zap.Error(err))
		return snap
	}
	doc, err := ParseDocument(page.Body)
	if err != nil {
		return snap
	}

	card := doc.FindClassContains("div", "listingCard").First()
	if card.Length() > 0 {
		s.parseCard(card, &snap)
	}

	absorbJSONLD(doc, &snap)
	if snap.HasSignal() {
		absorbVisibleText(doc.FullText(), &snap)
	}
	return snap
}

// parseCard pulls the listing card's price, address link, and bed/bath
// detail spans.
func (s *StreetEasy) parseCard(card *goquery.Selection, snap *model.PropertySnapshot) {
	card.Find("span").Each(func(_ int, el *goquery.Selection) {
		class, _ := el.Attr("class")
		lower := strings.ToLower(class)
		switch {
		case strings.Contains(lower, "price"):
			setPrice(snap, el.Text())
		case strings.Contains(lower, "detail"):
			text := strings.ToLower(el.Text())
			if strings.Contains(text, "bed") {
				setBedrooms(snap, el.Text())
			} else if strings.Contains(text, "bath") {
				setBathrooms(snap, el.Text())
			}
		}
	})

	card.Find("a").Each(func(_ int, el *goquery.Selection) {
		class, _ := el.Attr("class")
		if !strings.Contains(strings.ToLower(class), "address") {
			return
		}
		setAddress(snap, el.Text())
		if href, ok := el.Attr("href"); ok && snap.ListingURL == "" {
			if strings.HasPrefix(href, "/") {
				href = s.baseURL + href
			}
			snap.ListingURL = href
		}
	})
}
