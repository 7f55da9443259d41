// Package cost estimates per-image spend from static price tables.
// Estimates feed the global history log; they are informational and never
// gate a generation.
package cost

import "github.com/davegraham/imagegen/pkg/models"

const CurrencyUSD = "USD"

type PricingKey struct {
	Model   string
	Size    string
	Quality string
}

// OpenAI image pricing (USD per image).
// Source: https://openai.com/api/pricing/
var openAIPricing = map[PricingKey]float64{
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "low"}:    0.011,
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "medium"}: 0.042,
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "high"}:   0.167,
	{Model: "gpt-image-1", Size: "1024x1024", Quality: "auto"}:   0.042,

	{Model: "gpt-image-1", Size: "1536x1024", Quality: "low"}:    0.016,
	{Model: "gpt-image-1", Size: "1536x1024", Quality: "medium"}: 0.063,
	{Model: "gpt-image-1", Size: "1536x1024", Quality: "high"}:   0.250,
	{Model: "gpt-image-1", Size: "1536x1024", Quality: "auto"}:   0.063,

	{Model: "gpt-image-1", Size: "1024x1536", Quality: "low"}:    0.016,
	{Model: "gpt-image-1", Size: "1024x1536", Quality: "medium"}: 0.063,
	{Model: "gpt-image-1", Size: "1024x1536", Quality: "high"}:   0.250,
	{Model: "gpt-image-1", Size: "1024x1536", Quality: "auto"}:   0.063,

	{Model: "gpt-image-1", Size: "auto", Quality: "low"}:    0.011,
	{Model: "gpt-image-1", Size: "auto", Quality: "medium"}: 0.042,
	{Model: "gpt-image-1", Size: "auto", Quality: "high"}:   0.167,
	{Model: "gpt-image-1", Size: "auto", Quality: "auto"}:   0.042,

	{Model: "gpt-image-1.5", Size: "1024x1024", Quality: "low"}:    0.013,
	{Model: "gpt-image-1.5", Size: "1024x1024", Quality: "medium"}: 0.050,
	{Model: "gpt-image-1.5", Size: "1024x1024", Quality: "high"}:   0.200,
	{Model: "gpt-image-1.5", Size: "1024x1024", Quality: "auto"}:   0.050,

	{Model: "gpt-image-1.5", Size: "auto", Quality: "low"}:    0.013,
	{Model: "gpt-image-1.5", Size: "auto", Quality: "medium"}: 0.050,
	{Model: "gpt-image-1.5", Size: "auto", Quality: "high"}:   0.200,
	{Model: "gpt-image-1.5", Size: "auto", Quality: "auto"}:   0.050,

	{Model: "gpt-image-1-mini", Size: "auto", Quality: "low"}:    0.005,
	{Model: "gpt-image-1-mini", Size: "auto", Quality: "medium"}: 0.011,
	{Model: "gpt-image-1-mini", Size: "auto", Quality: "high"}:   0.036,
	{Model: "gpt-image-1-mini", Size: "auto", Quality: "auto"}:   0.011,
}

// OpenRouter bills the Gemini image models per generated image.
var openRouterPricing = map[string]float64{
	"google/gemini-2.5-flash-image-preview": 0.039,
	"google/gemini-3-pro-image-preview":     0.120,
}

// Estimate returns the estimated USD cost of one image, zero when the
// combination is unknown.
func Estimate(provider models.ProviderType, wireID, size, quality string) float64 {
	switch provider {
	case models.ProviderOpenAI:
		return estimateOpenAI(wireID, size, quality)
	case models.ProviderOpenRouter:
		return openRouterPricing[wireID]
	default:
		return 0
	}
}

func estimateOpenAI(wireID, size, quality string) float64 {
	if price, ok := openAIPricing[PricingKey{Model: wireID, Size: size, Quality: quality}]; ok {
		return price
	}
	// Unlisted size: fall back to the model's auto/auto rate.
	if price, ok := openAIPricing[PricingKey{Model: wireID, Size: "auto", Quality: "auto"}]; ok {
		return price
	}
	return 0
}
