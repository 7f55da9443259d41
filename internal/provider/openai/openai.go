// Package openai talks to the OpenAI images API. Unlike the chat-based
// provider, responses have a single fixed shape: data[0].b64_json.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/davegraham/imagegen/internal/provider"
	"github.com/davegraham/imagegen/internal/retry"
	"github.com/davegraham/imagegen/pkg/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

type apiRequest struct {
	Model        string `json:"model"`
	Prompt       string `json:"prompt"`
	N            int    `json:"n"`
	Size         string `json:"size,omitempty"`
	Quality      string `json:"quality,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
	Background   string `json:"background,omitempty"`
}

type apiResponse struct {
	Data  []imageData `json:"data"`
	Error *apiError   `json:"error,omitempty"`
}

type imageData struct {
	B64JSON string `json:"b64_json"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
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
	return models.ProviderOpenAI
}

func (p *Provider) SupportsModel(alias string) bool {
	cap, ok := p.registry.Get(alias)
	if !ok {
		return false
	}
	return cap.Provider == models.ProviderOpenAI
}

// Generate dispatches to the edit endpoint when the request carries an
// input image, and the generation endpoint otherwise.
func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.ImagePayload, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var body []byte
	var err error
	if len(req.InputImage) > 0 {
		body, err = p.edit(ctx, req)
	} else {
		body, err = p.create(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	return parseResponse(body, req.OutputFormat)
}

func (p *Provider) create(ctx context.Context, req *models.Request) ([]byte, error) {
	apiReq := &apiRequest{
		Model:        req.WireID,
		Prompt:       req.Prompt,
		N:            1,
		Size:         req.Size,
		Quality:      req.Quality,
		OutputFormat: req.OutputFormat,
		Background:   "auto",
	}
	if req.Transparent {
		apiReq.Background = "transparent"
	}

	jsonData, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/images/generations"
	return p.post(ctx, url, "application/json", jsonData)
}

// edit uploads the source image as multipart form data. The form is
// built once; every retry attempt resends the same bytes.
func (p *Provider) edit(ctx context.Context, req *models.Request) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	imagePart, err := writer.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := imagePart.Write(req.InputImage); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	fields := map[string]string{
		"model":  req.WireID,
		"prompt": req.Prompt,
	}
	if req.Size != "" {
		fields["size"] = req.Size
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write %s field: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := p.baseURL + "/images/edits"
	return p.post(ctx, url, writer.FormDataContentType(), body.Bytes())
}

func (p *Provider) post(ctx context.Context, url, contentType string, payload []byte) ([]byte, error) {
	var respBody []byte

	err := retry.Do(ctx, p.retryCfg, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		httpReq.Header.Set("Content-Type", contentType)
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

		if p.verbose {
			provider.LogRequest(os.Stderr, http.MethodPost, url, httpReq.Header, nil)
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

func parseResponse(body []byte, outputFormat string) (*models.ImagePayload, error) {
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrRequestFailed, apiResp.Error.Message)
	}

	if len(apiResp.Data) == 0 || apiResp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: response has no data", provider.ErrNoImage)
	}

	decoded, err := base64.StdEncoding.DecodeString(apiResp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrInvalidImageData, err)
	}

	mime := ""
	if outputFormat != "" {
		mime = "image/" + outputFormat
	}
	return &models.ImagePayload{Data: decoded, MIME: mime}, nil
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
