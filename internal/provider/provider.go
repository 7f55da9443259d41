package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/davegraham/imagegen/internal/retry"
	"github.com/davegraham/imagegen/pkg/models"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrAPIKeyRequired   = errors.New("API key is required")
	ErrRequestFailed    = errors.New("provider request failed")
	ErrNoImage          = errors.New("no image in response")
	ErrInvalidImageData = errors.New("invalid image data in response")
)

// Provider sends one generation (or edit, when the request carries an
// input image) to a single provider family and returns the decoded image.
type Provider interface {
	Name() models.ProviderType
	Generate(ctx context.Context, req *models.Request) (*models.ImagePayload, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
	Verbose    bool
	Retry      retry.Config
}

// Factory routes a model alias to the provider registered for its family.
type Factory struct {
	registry  *models.ModelRegistry
	providers map[models.ProviderType]Provider
}

func NewFactory(registry *models.ModelRegistry) *Factory {
	return &Factory{
		registry:  registry,
		providers: make(map[models.ProviderType]Provider),
	}
}

func (f *Factory) Register(provider Provider) {
	f.providers[provider.Name()] = provider
}

func (f *Factory) Get(providerType models.ProviderType) (Provider, error) {
	provider, ok := f.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerType)
	}
	return provider, nil
}

func (f *Factory) GetForAlias(alias string) (Provider, error) {
	cap, ok := f.registry.Get(alias)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownModel, alias)
	}

	provider, ok := f.providers[cap.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s (required by model %s)", ErrProviderNotFound, cap.Provider, alias)
	}

	return provider, nil
}

func (f *Factory) ListProviders() []models.ProviderType {
	types := make([]models.ProviderType, 0, len(f.providers))
	for t := range f.providers {
		types = append(types, t)
	}
	return types
}
