// Package keys stores provider API keys in the user config directory,
// with environment variables as a fallback.
package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davegraham/imagegen/internal/config"
	"github.com/davegraham/imagegen/pkg/models"
)

// EnvVar returns the environment variable consulted for a provider
// family's credential.
func EnvVar(provider models.ProviderType) string {
	switch provider {
	case models.ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case models.ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

type Store struct {
	configDir string
}

type KeyEntry struct {
	Key string `json:"key"`
}

type Keys map[string]KeyEntry

func NewStore() (*Store, error) {
	configDir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return &Store{configDir: configDir}, nil
}

func (s *Store) Path() string {
	return filepath.Join(s.configDir, "keys.json")
}

func (s *Store) load() (Keys, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(Keys), nil
		}
		return nil, err
	}

	var keys Keys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse keys.json: %w", err)
	}
	return keys, nil
}

func (s *Store) save(keys Keys) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}

	// Owner read/write only
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write keys.json: %w", err)
	}
	return nil
}

func (s *Store) Set(provider models.ProviderType, key string) error {
	keys, err := s.load()
	if err != nil {
		return err
	}

	keys[string(provider)] = KeyEntry{Key: key}
	return s.save(keys)
}

func (s *Store) Get(provider models.ProviderType) (string, error) {
	keys, err := s.load()
	if err != nil {
		return "", err
	}

	entry, ok := keys[string(provider)]
	if !ok {
		return "", nil // not stored, not an error
	}
	return entry.Key, nil
}

func (s *Store) Delete(provider models.ProviderType) error {
	keys, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := keys[string(provider)]; !ok {
		return fmt.Errorf("no key found for %s", provider)
	}

	delete(keys, string(provider))
	return s.save(keys)
}

func (s *Store) List() ([]string, error) {
	keys, err := s.load()
	if err != nil {
		return nil, err
	}

	providers := make([]string, 0, len(keys))
	for provider := range keys {
		providers = append(providers, provider)
	}
	return providers, nil
}

// MaskKey returns a masked version of the key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Resolve retrieves a provider credential using the priority order:
// explicit flag value, stored key, environment variable. The second
// return names the source for status output.
func Resolve(explicitKey string, provider models.ProviderType) (string, string, error) {
	if explicitKey != "" {
		return explicitKey, "command-line flag", nil
	}

	if store, err := NewStore(); err == nil {
		if storedKey, err := store.Get(provider); err == nil && storedKey != "" {
			return storedKey, fmt.Sprintf("stored key (%s)", store.Path()), nil
		}
	}

	envVar := EnvVar(provider)
	if envKey := os.Getenv(envVar); envKey != "" {
		return envKey, fmt.Sprintf("environment variable (%s)", envVar), nil
	}

	return "", "", fmt.Errorf("API key required for %s: run 'imagegen keys set %s' or set %s", provider, provider, envVar)
}
