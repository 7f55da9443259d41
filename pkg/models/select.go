package models

import "strings"

// Signals are the explicit capability hints a caller can set alongside
// whatever the prompt text implies.
type Signals struct {
	Transparent bool
	TextHeavy   bool
	Fast        bool
	HighRes     bool
}

var transparencyKeywords = []string{
	"transparent", "transparency", "png with alpha",
	"no background", "remove background", "cutout",
	"isolated on", "white background", "clear background",
}

var textKeywords = []string{
	"text", "typography", "lettering", "words", "title",
	"heading", "sign", "poster with text", "logo with text",
	"banner", "quote", "writing",
}

var fastKeywords = []string{
	"quick", "draft", "rough", "sketch", "fast", "test",
}

var highResKeywords = []string{
	"4k", "high res", "high resolution", "detailed",
	"print quality", "large format", "poster", "wallpaper",
}

// Select picks a model alias from the prompt text and explicit signals.
// Checks run in priority order and the first match wins: transparency
// routes to OpenAI (the only family with transparent PNG output), then
// text fidelity, then draft speed, then canvas size.
func Select(prompt string, sig Signals) string {
	lower := strings.ToLower(prompt)

	if sig.Transparent || containsAny(lower, transparencyKeywords) {
		return "gpt-image-1.5"
	}

	if sig.TextHeavy || containsAny(lower, textKeywords) {
		return "gpt-image-1.5"
	}

	if sig.Fast || containsAny(lower, fastKeywords) {
		return "nano-banana"
	}

	if sig.HighRes || containsAny(lower, highResKeywords) {
		return "nano-banana-pro"
	}

	return DefaultAlias
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
