package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/davegraham/imagegen/pkg/models"
)

type fakeProvider struct {
	name models.ProviderType
}

func (f *fakeProvider) Name() models.ProviderType { return f.name }

func (f *fakeProvider) Generate(_ context.Context, _ *models.Request) (*models.ImagePayload, error) {
	return &models.ImagePayload{Data: []byte("fake")}, nil
}

func TestFactory_Get(t *testing.T) {
	f := NewFactory(models.DefaultRegistry())
	f.Register(&fakeProvider{name: models.ProviderOpenRouter})

	p, err := f.Get(models.ProviderOpenRouter)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Name() != models.ProviderOpenRouter {
		t.Errorf("Name() = %v, want openrouter", p.Name())
	}

	if _, err := f.Get(models.ProviderOpenAI); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Get(openai) error = %v, want ErrProviderNotFound", err)
	}
}

func TestFactory_GetForAlias(t *testing.T) {
	f := NewFactory(models.DefaultRegistry())
	f.Register(&fakeProvider{name: models.ProviderOpenRouter})
	f.Register(&fakeProvider{name: models.ProviderOpenAI})

	tests := []struct {
		alias   string
		want    models.ProviderType
		wantErr error
	}{
		{"nano-banana", models.ProviderOpenRouter, nil},
		{"nano-banana-pro", models.ProviderOpenRouter, nil},
		{"gpt-image-1.5", models.ProviderOpenAI, nil},
		{"foo", "", models.ErrUnknownModel},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			p, err := f.GetForAlias(tt.alias)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetForAlias() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetForAlias() error = %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("Name() = %v, want %v", p.Name(), tt.want)
			}
		})
	}
}

func TestFactory_GetForAlias_ProviderMissing(t *testing.T) {
	f := NewFactory(models.DefaultRegistry())
	f.Register(&fakeProvider{name: models.ProviderOpenRouter})

	_, err := f.GetForAlias("gpt-image")
	if !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("GetForAlias() error = %v, want ErrProviderNotFound", err)
	}
}

func TestFactory_ListProviders(t *testing.T) {
	f := NewFactory(models.DefaultRegistry())
	f.Register(&fakeProvider{name: models.ProviderOpenRouter})
	f.Register(&fakeProvider{name: models.ProviderOpenAI})

	if got := len(f.ListProviders()); got != 2 {
		t.Errorf("ListProviders() returned %d, want 2", got)
	}
}
