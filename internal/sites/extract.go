package sites

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/valuation-cli/internal/model"
)

// Numeric parse helpers. Listing markup carries values as display strings
// ("$1,250,000", "3 bds", "1,850 sqft"); each helper pulls the first
// plausible number and reports ok=false otherwise.

var (
	dollarRe = regexp.MustCompile(`\$\s*([\d,]+)`)
	numberRe = regexp.MustCompile(`([\d,]+)`)
	floatRe  = regexp.MustCompile(`(\d+\.?\d*)`)
)

// ParsePrice extracts a dollar amount, preferring a $-prefixed figure.
func ParsePrice(s string) (int, bool) {
	m := dollarRe.FindStringSubmatch(s)
	if m == nil {
		m = numberRe.FindStringSubmatch(s)
	}
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ParseCount extracts a small integer count such as bedrooms.
func ParseCount(s string) (int, bool) {
	m := numberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ParseDecimal extracts a decimal value such as bathrooms ("2.5 ba").
func ParseDecimal(s string) (float64, bool) {
	m := floatRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Fill-if-empty setters. Extraction is layered: structured data first,
// DOM second, text regex last, and a later layer never overwrites an
// earlier one.

func setPrice(snap *model.PropertySnapshot, s string) {
	if snap.Price != nil || s == "" {
		return
	}
	if v, ok := ParsePrice(s); ok {
		snap.Price = &v
	}
}

func setBedrooms(snap *model.PropertySnapshot, s string) {
	if snap.Bedrooms != nil || s == "" {
		return
	}
	if v, ok := ParseCount(s); ok {
		snap.Bedrooms = &v
	}
}

func setBathrooms(snap *model.PropertySnapshot, s string) {
	if snap.Bathrooms != nil || s == "" {
		return
	}
	if v, ok := ParseDecimal(s); ok {
		snap.Bathrooms = &v
	}
}

func setSquareFeet(snap *model.PropertySnapshot, s string) {
	if snap.SquareFeet != nil || s == "" {
		return
	}
	if v, ok := ParseCount(s); ok {
		snap.SquareFeet = &v
	}
}

func setAddress(snap *model.PropertySnapshot, s string) {
	if snap.Address == "" && s != "" {
		snap.Address = strings.TrimSpace(s)
	}
}

// absorbJSONLD fills snapshot fields from schema.org structured data.
func absorbJSONLD(doc *Document, snap *model.PropertySnapshot) {
	for _, obj := range doc.JSONLD() {
		if addr, ok := obj["address"].(map[string]any); ok && snap.Address == "" {
			var parts []string
			for _, k := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
				if v, ok := addr[k].(string); ok && v != "" {
					parts = append(parts, v)
				}
			}
			snap.Address = strings.Join(parts, " ")
		}
		if offers, ok := obj["offers"].(map[string]any); ok && snap.Price == nil {
			for _, k := range []string{"price", "lowPrice", "highPrice"} {
				if v := offers[k]; v != nil {
					setPrice(snap, anyToString(v))
					break
				}
			}
		}
		if v, ok := obj["numberOfRooms"].(float64); ok && snap.Bedrooms == nil {
			setBedrooms(snap, strconv.Itoa(int(v)))
		}
		if v, ok := obj["numberOfBathroomsTotal"].(float64); ok && snap.Bathrooms == nil {
			setBathrooms(snap, anyToString(v))
		}
		if fs, ok := obj["floorSize"].(map[string]any); ok && snap.SquareFeet == nil {
			if v := fs["value"]; v != nil {
				setSquareFeet(snap, anyToString(v))
			}
		}
	}
}

// absorbEmbeddedState fills snapshot fields from a framework state blob
// such as Next.js __NEXT_DATA__, searched by well-known key names.
func absorbEmbeddedState(state map[string]any, snap *model.PropertySnapshot) {
	if state == nil {
		return
	}
	if v := deepFind(state, "price", "priceRaw", "unformattedPrice", "zestimate", "homePrice", "priceValue"); v != nil {
		setPrice(snap, anyToString(v))
	}
	if v := deepFind(state, "bedrooms", "beds", "bedroomsMax", "bedroomsMin"); v != nil {
		setBedrooms(snap, anyToString(v))
	}
	if v := deepFind(state, "bathrooms", "baths", "numberOfBathroomsTotal", "bathroomsMax", "bathroomsMin"); v != nil {
		setBathrooms(snap, anyToString(v))
	}
	if v := deepFind(state, "livingArea", "livingAreaValue", "sqft", "homeSize", "universalsize"); v != nil {
		setSquareFeet(snap, anyToString(v))
	}
	if snap.Address == "" {
		var parts []string
		for _, keys := range [][]string{
			{"streetAddress", "street"},
			{"city", "addressLocality"},
			{"state", "addressRegion"},
			{"zipcode", "postalCode"},
		} {
			if v := deepFind(state, keys...); v != nil {
				parts = append(parts, anyToString(v))
			}
		}
		snap.Address = strings.Join(parts, " ")
	}
}

// Text-layer patterns shared across adapters. Zillow abbreviates to
// bd/ba; the longer forms cover the other sites.
var (
	textBedsRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:bd|bds|bed|beds)\b`)
	textBathsRe = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(?:ba|bath|baths)\b`)
	textSqftRe  = regexp.MustCompile(`(?i)([\d,]+)\s*sq\s*\.?\s*ft\b`)
)

// absorbVisibleText is the last extraction layer: regex over page text.
func absorbVisibleText(fullText string, snap *model.PropertySnapshot) {
	if snap.Price == nil {
		if m := dollarRe.FindStringSubmatch(fullText); m != nil {
			setPrice(snap, m[0])
		}
	}
	if snap.Bedrooms == nil {
		if m := textBedsRe.FindStringSubmatch(fullText); m != nil {
			setBedrooms(snap, m[1])
		}
	}
	if snap.Bathrooms == nil {
		if m := textBathsRe.FindStringSubmatch(fullText); m != nil {
			setBathrooms(snap, m[1])
		}
	}
	if snap.SquareFeet == nil {
		if m := textSqftRe.FindStringSubmatch(fullText); m != nil {
			setSquareFeet(snap, m[1])
		}
	}
}

func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
