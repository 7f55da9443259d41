// Package openrouter talks to the OpenRouter chat completions API, which
// fronts the Gemini image models. Images come back embedded in a chat
// message rather than a dedicated image response, so extraction probes a
// fixed list of known message shapes (see extract.go).
package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/davegraham/imagegen/internal/image"
	"github.com/davegraham/imagegen/internal/provider"
	"github.com/davegraham/imagegen/internal/retry"
	"github.com/davegraham/imagegen/pkg/models"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 120 * time.Second
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Modalities  []string      `json:"modalities"`
	ImageConfig *imageConfig  `json:"image_config,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type imageConfig struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
	ImageSize   string `json:"image_size,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message json.RawMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	registry   *models.ModelRegistry
	retryCfg   retry.Config
	verbose    bool
}

func New(cfg *provider.Config, registry *models.ModelRegistry) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}

	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		registry: registry,
		retryCfg: retryCfg,
		verbose:  cfg.Verbose,
	}, nil
}

func (p *Provider) Name() models.ProviderType {
	return models.ProviderOpenRouter
}

func (p *Provider) SupportsModel(alias string) bool {
	cap, ok := p.registry.Get(alias)
	if !ok {
		return false
	}
	return cap.Provider == models.ProviderOpenRouter
}

func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.ImagePayload, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(p.buildChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	body, err := p.post(ctx, url, jsonData)
	if err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrRequestFailed, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", provider.ErrNoImage)
	}

	data, err := extractImageData(chatResp.Choices[0].Message)
	if err != nil {
		return nil, err
	}

	payload, err := image.DecodePayload(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrInvalidImageData, err)
	}
	return payload, nil
}

// post sends the identical payload on every attempt. Transport failures
// are retried; HTTP error statuses are permanent.
func (p *Provider) post(ctx context.Context, url string, jsonData []byte) ([]byte, error) {
	var respBody []byte

	err := retry.Do(ctx, p.retryCfg, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

		if p.verbose {
			provider.LogRequest(os.Stderr, http.MethodPost, url, httpReq.Header, jsonData)
		}

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if p.verbose {
			provider.LogResponse(os.Stderr, resp.StatusCode, resp.Header, body)
		}

		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(statusError(resp.StatusCode, body))
		}

		respBody = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

func (p *Provider) buildChatRequest(req *models.Request) *chatRequest {
	var content []contentPart

	if len(req.InputImage) > 0 {
		mime := req.InputMIME
		if mime == "" {
			mime = "image/png"
		}
		encoded := base64.StdEncoding.EncodeToString(req.InputImage)
		content = append(content, contentPart{
			Type:     "image_url",
			ImageURL: &imageRef{URL: fmt.Sprintf("data:%s;base64,%s", mime, encoded)},
		})
	}
	content = append(content, contentPart{Type: "text", Text: req.Prompt})

	chatReq := &chatRequest{
		Model:      req.WireID,
		Messages:   []chatMessage{{Role: "user", Content: content}},
		Modalities: []string{"image", "text"},
	}

	if req.AspectRatio != "" || req.ImageSize != "" {
		chatReq.ImageConfig = &imageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   req.ImageSize,
		}
	}

	return chatReq
}

func statusError(statusCode int, body []byte) error {
	var errResp struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		return fmt.Errorf("%w: status %d: %s", provider.ErrRequestFailed, statusCode, errResp.Error.Message)
	}
	return fmt.Errorf("%w: status %d", provider.ErrRequestFailed, statusCode)
}
