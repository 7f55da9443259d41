package cost

import (
	"testing"

	"github.com/davegraham/imagegen/pkg/models"
)

func TestEstimate_OpenAI(t *testing.T) {
	tests := []struct {
		name    string
		wireID  string
		size    string
		quality string
		want    float64
	}{
		{"gpt-image-1 square medium", "gpt-image-1", "1024x1024", "medium", 0.042},
		{"gpt-image-1 landscape high", "gpt-image-1", "1536x1024", "high", 0.250},
		{"gpt-image-1.5 auto", "gpt-image-1.5", "auto", "auto", 0.050},
		{"mini auto", "gpt-image-1-mini", "auto", "auto", 0.011},
		{"unlisted size falls back to auto rate", "gpt-image-1.5", "1536x1024", "auto", 0.050},
		{"unknown model", "dall-e-9", "auto", "auto", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(models.ProviderOpenAI, tt.wireID, tt.size, tt.quality)
			if got != tt.want {
				t.Errorf("Estimate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimate_OpenRouter(t *testing.T) {
	got := Estimate(models.ProviderOpenRouter, "google/gemini-3-pro-image-preview", "", "")
	if got != 0.120 {
		t.Errorf("Estimate() = %v, want 0.120", got)
	}

	if got := Estimate(models.ProviderOpenRouter, "google/unknown", "", ""); got != 0 {
		t.Errorf("Estimate(unknown) = %v, want 0", got)
	}
}

func TestEstimate_UnknownProvider(t *testing.T) {
	if got := Estimate("other", "x", "y", "z"); got != 0 {
		t.Errorf("Estimate() = %v, want 0", got)
	}
}

func TestEstimate_EveryRegisteredAliasHasAPrice(t *testing.T) {
	r := models.DefaultRegistry()
	for _, alias := range r.List() {
		cap, _ := r.Get(alias)
		if got := Estimate(cap.Provider, cap.WireID, "auto", "auto"); got <= 0 {
			t.Errorf("alias %s (wire %s) has no price", alias, cap.WireID)
		}
	}
}
