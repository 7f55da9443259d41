package openrouter

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/davegraham/imagegen/internal/provider"
)

// The chat API has shipped images under several message layouts. Each
// extractor is a pure probe for one layout; they run in order and the
// first hit wins. Exhaustion reports the message's top-level keys so a
// new layout is diagnosable from the error alone.
type extractor func(msg map[string]json.RawMessage) (string, bool)

var extractors = []extractor{
	extractFromImagesField,
	extractFromContentParts,
}

func extractImageData(rawMsg json.RawMessage) (string, error) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}

	for _, extract := range extractors {
		if data, ok := extract(msg); ok {
			return data, nil
		}
	}

	return "", fmt.Errorf("%w: message keys: %v", provider.ErrNoImage, messageKeys(msg))
}

// extractFromImagesField handles the dedicated "images" field, whose first
// element is either a bare data-URL string or an object carrying the URL
// under image_url.url, url, b64_json, or data.
func extractFromImagesField(msg map[string]json.RawMessage) (string, bool) {
	raw, ok := msg["images"]
	if !ok {
		return "", false
	}

	var images []json.RawMessage
	if err := json.Unmarshal(raw, &images); err != nil || len(images) == 0 {
		return "", false
	}

	first := images[0]

	var s string
	if err := json.Unmarshal(first, &s); err == nil && s != "" {
		return s, true
	}

	var obj struct {
		ImageURL *imageRef `json:"image_url"`
		URL      string    `json:"url"`
		B64JSON  string    `json:"b64_json"`
		Data     string    `json:"data"`
	}
	if err := json.Unmarshal(first, &obj); err != nil {
		return "", false
	}

	if obj.ImageURL != nil && obj.ImageURL.URL != "" {
		return obj.ImageURL.URL, true
	}
	for _, candidate := range []string{obj.URL, obj.B64JSON, obj.Data} {
		if candidate != "" {
			return candidate, true
		}
	}
	return "", false
}

// extractFromContentParts falls back to scanning a content part list for
// an inline image part.
func extractFromContentParts(msg map[string]json.RawMessage) (string, bool) {
	raw, ok := msg["content"]
	if !ok {
		return "", false
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", false
	}

	for _, part := range parts {
		if part.Type == "image_url" && part.ImageURL != nil && part.ImageURL.URL != "" {
			return part.ImageURL.URL, true
		}
	}
	return "", false
}

func messageKeys(msg map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(msg))
	for k := range msg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
