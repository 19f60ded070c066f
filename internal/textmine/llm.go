package textmine

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/valuation-cli/internal/model"
	"github.com/sells-group/valuation-cli/pkg/anthropic"
)

// DefaultModel is the small model used for snippet extraction.
const DefaultModel = "claude-haiku-4-5-20251001"

const maxContextChars = 16000

// Subject describes the property the mined comps should resemble.
type Subject struct {
	Address string
	City    string
	State   string
	Zip     string
}

// LLMExtractor asks a small model to mine comps from snippet text, with
// the regex extractor as its safety net. A nil client (no API key
// configured) makes Extract a plain regex pass.
type LLMExtractor struct {
	client anthropic.Client
	model  string
}

// NewLLMExtractor wraps an Anthropic client; nil is allowed and disables
// the model-assisted path.
func NewLLMExtractor(client anthropic.Client, model string) *LLMExtractor {
	if model == "" {
		model = DefaultModel
	}
	return &LLMExtractor{client: client, model: model}
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// Extract mines comparable sales from raw snippet text. The model's
// answer must be a strict JSON comp array; any error, unparseable reply,
// or short result falls through to the regex extractor over the same
// text. Output is bounded by MaxComparables either way.
func (e *LLMExtractor) Extract(ctx context.Context, subject Subject, rawText string) []model.ComparableSale {
	if e.client == nil {
		return ExtractComparables(rawText)
	}

	comps := e.tryModel(ctx, subject, rawText)
	if len(comps) >= 3 {
		return comps
	}

	seen := make(map[string]bool, len(comps))
	for _, c := range comps {
		seen[strings.ToLower(c.Address)] = true
	}
	for _, c := range ExtractComparables(rawText) {
		if len(comps) >= MaxComparables {
			break
		}
		if seen[strings.ToLower(c.Address)] {
			continue
		}
		comps = append(comps, c)
	}
	return comps
}

type llmComp struct {
	Address    string   `json:"address"`
	Bedrooms   *float64 `json:"bedrooms"`
	Bathrooms  *float64 `json:"bathrooms"`
	SquareFeet *float64 `json:"square_feet"`
	SalePrice  *float64 `json:"last_sale_price"`
	SaleDate   string   `json:"last_sale_date"`
	ListingURL string   `json:"listing_url"`
}

func (e *LLMExtractor) tryModel(ctx context.Context, subject Subject, rawText string) []model.ComparableSale {
	if len(rawText) > maxContextChars {
		rawText = rawText[:maxContextChars]
	}

	prompt := "You are an expert real estate analyst. From the CONTEXT below, extract 3-5 recent comparable residential sales near the subject property.\n\n" +
		"Subject: " + strings.TrimSpace(subject.Address+" "+subject.City+" "+subject.State+" "+subject.Zip) + "\n\n" +
		"CONTEXT:\n" + rawText + "\n\n" +
		"Return ONLY a JSON array of objects with keys: " +
		"address, bedrooms, bathrooms, square_feet, last_sale_price, last_sale_date, listing_url. " +
		"Use null for unknown values. No prose."

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 2048,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		zap.L().Warn("model-assisted comp extraction failed", zap.Error(err))
		return nil
	}
	resp.Usage.LogCost(e.model, "comp-extraction")

	var reply strings.Builder
	for _, block := range resp.Content {
		reply.WriteString(block.Text)
	}

	raw := jsonArrayRe.FindString(reply.String())
	if raw == "" {
		zap.L().Debug("model reply contained no JSON array")
		return nil
	}

	var parsed []llmComp
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		zap.L().Debug("model reply was not a comp array", zap.Error(err))
		return nil
	}

	comps := make([]model.ComparableSale, 0, len(parsed))
	for _, p := range parsed {
		if len(comps) >= MaxComparables {
			break
		}
		c := model.ComparableSale{
			Address:    strings.TrimSpace(p.Address),
			SaleDate:   p.SaleDate,
			ListingURL: p.ListingURL,
			Provenance: model.ProvenanceTextMined,
		}
		if p.Bedrooms != nil {
			v := int(*p.Bedrooms)
			c.Bedrooms = &v
		}
		if p.Bathrooms != nil {
			c.Bathrooms = p.Bathrooms
		}
		if p.SquareFeet != nil {
			v := int(*p.SquareFeet)
			c.SquareFeet = &v
		}
		if p.SalePrice != nil {
			v := int(*p.SalePrice)
			c.SalePrice = &v
		}
		if c.Valid() {
			comps = append(comps, c)
		}
	}
	return comps
}
