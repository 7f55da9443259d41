package models

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	ErrEmptyPrompt      = errors.New("prompt cannot be empty")
	ErrUnknownModel     = errors.New("unknown model")
	ErrInvalidImageSize = errors.New("invalid image size")
)

type ProviderType string

const (
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOpenAI     ProviderType = "openai"
)

const DefaultAlias = "nano-banana-pro"

func ValidImageSizes() []string {
	return []string{"1K", "2K", "4K"}
}

type Request struct {
	Prompt       string
	Alias        string
	WireID       string
	InputImage   []byte
	InputMIME    string
	AspectRatio  string
	ImageSize    string
	Size         string
	Quality      string
	OutputFormat string
	Transparent  bool
}

func NewRequest(prompt string) *Request {
	return &Request{
		Prompt:       prompt,
		Size:         "auto",
		Quality:      "auto",
		OutputFormat: "png",
	}
}

func (r *Request) Validate() error {
	if r.Prompt == "" {
		return ErrEmptyPrompt
	}
	if r.ImageSize != "" && !slices.Contains(ValidImageSizes(), r.ImageSize) {
		return fmt.Errorf("%w: %q not in %v", ErrInvalidImageSize, r.ImageSize, ValidImageSizes())
	}
	return nil
}

// ImagePayload is a decoded provider image: raw bytes plus the MIME type
// reported (or implied) by the provider response.
type ImagePayload struct {
	Data []byte
	MIME string
}

var extByMIME = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Ext returns the file extension for the payload's MIME type, defaulting
// to png when the type is missing or unrecognized.
func (p *ImagePayload) Ext() string {
	if ext, ok := extByMIME[p.MIME]; ok {
		return ext
	}
	return "png"
}

type ModelCapabilities struct {
	Alias                string
	Provider             ProviderType
	WireID               string
	SupportsTransparency bool
	SupportsEdit         bool
	SupportsAspectRatio  bool
	MaxImageSize         string
}

type ModelRegistry struct {
	models map[string]*ModelCapabilities
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]*ModelCapabilities),
	}
}

func (r *ModelRegistry) Register(cap *ModelCapabilities) {
	r.models[cap.Alias] = cap
}

func (r *ModelRegistry) Get(alias string) (*ModelCapabilities, bool) {
	cap, ok := r.models[alias]
	return cap, ok
}

func (r *ModelRegistry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ModelRegistry) ListByProvider(provider ProviderType) []string {
	var names []string
	for name, cap := range r.models {
		if cap.Provider == provider {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func DefaultRegistry() *ModelRegistry {
	r := NewModelRegistry()

	r.Register(&ModelCapabilities{
		Alias:               "nano-banana",
		Provider:            ProviderOpenRouter,
		WireID:              "google/gemini-2.5-flash-image-preview",
		SupportsEdit:        true,
		SupportsAspectRatio: true,
		MaxImageSize:        "2K",
	})

	r.Register(&ModelCapabilities{
		Alias:               "nano-banana-pro",
		Provider:            ProviderOpenRouter,
		WireID:              "google/gemini-3-pro-image-preview",
		SupportsEdit:        true,
		SupportsAspectRatio: true,
		MaxImageSize:        "4K",
	})

	r.Register(&ModelCapabilities{
		Alias:                "gpt-image",
		Provider:             ProviderOpenAI,
		WireID:               "gpt-image-1",
		SupportsTransparency: true,
		SupportsEdit:         true,
	})

	r.Register(&ModelCapabilities{
		Alias:                "gpt-image-1.5",
		Provider:             ProviderOpenAI,
		WireID:               "gpt-image-1.5",
		SupportsTransparency: true,
		SupportsEdit:         true,
	})

	r.Register(&ModelCapabilities{
		Alias:                "gpt-image-mini",
		Provider:             ProviderOpenAI,
		WireID:               "gpt-image-1-mini",
		SupportsTransparency: true,
		SupportsEdit:         true,
	})

	return r
}
