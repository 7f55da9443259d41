package openrouter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davegraham/imagegen/internal/provider"
	"github.com/davegraham/imagegen/internal/retry"
	"github.com/davegraham/imagegen/pkg/models"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G'}

func dataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

func noSleepRetry() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p, err := New(&provider.Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Retry:   noSleepRetry(),
	}, models.DefaultRegistry())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func chatBody(message string) string {
	return fmt.Sprintf(`{"choices":[{"message":%s}]}`, message)
}

func TestNew(t *testing.T) {
	registry := models.DefaultRegistry()

	tests := []struct {
		name    string
		cfg     *provider.Config
		wantErr error
	}{
		{
			name: "valid config",
			cfg:  &provider.Config{APIKey: "test-key"},
		},
		{
			name:    "empty API key",
			cfg:     &provider.Config{APIKey: ""},
			wantErr: provider.ErrAPIKeyRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, registry)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("New() error = %v, want nil", err)
			}
		})
	}
}

func TestProvider_SupportsModel(t *testing.T) {
	p := newTestProvider(t, "")

	tests := []struct {
		alias string
		want  bool
	}{
		{"nano-banana", true},
		{"nano-banana-pro", true},
		{"gpt-image-1.5", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			if got := p.SupportsModel(tt.alias); got != tt.want {
				t.Errorf("SupportsModel(%s) = %v, want %v", tt.alias, got, tt.want)
			}
		})
	}
}

func TestProvider_Generate(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, chatBody(fmt.Sprintf(`{"images":[%q]}`, dataURL())))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	req := models.NewRequest("a red circle")
	req.Alias = "nano-banana-pro"
	req.WireID = "google/gemini-3-pro-image-preview"
	req.AspectRatio = "16:9"
	req.ImageSize = "4K"

	payload, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if string(payload.Data) != string(pngBytes) {
		t.Errorf("payload data mismatch")
	}
	if payload.MIME != "image/png" {
		t.Errorf("MIME = %q, want image/png", payload.MIME)
	}

	if gotReq.Model != "google/gemini-3-pro-image-preview" {
		t.Errorf("wire model = %q", gotReq.Model)
	}
	if len(gotReq.Modalities) != 2 {
		t.Errorf("modalities = %v, want [image text]", gotReq.Modalities)
	}
	if gotReq.ImageConfig == nil || gotReq.ImageConfig.AspectRatio != "16:9" || gotReq.ImageConfig.ImageSize != "4K" {
		t.Errorf("image_config = %+v", gotReq.ImageConfig)
	}
	if len(gotReq.Messages) != 1 || len(gotReq.Messages[0].Content) != 1 {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	if part := gotReq.Messages[0].Content[0]; part.Type != "text" || part.Text != "a red circle" {
		t.Errorf("content part = %+v", part)
	}
}

func TestProvider_Generate_WithInputImage(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, chatBody(fmt.Sprintf(`{"images":[%q]}`, dataURL())))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	req := models.NewRequest("make it blue")
	req.WireID = "google/gemini-3-pro-image-preview"
	req.InputImage = []byte("source-image")
	req.InputMIME = "image/jpeg"

	if _, err := p.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	content := gotReq.Messages[0].Content
	if len(content) != 2 {
		t.Fatalf("content parts = %d, want 2 (image then text)", len(content))
	}
	if content[0].Type != "image_url" || content[0].ImageURL == nil {
		t.Fatalf("first part = %+v, want image_url", content[0])
	}
	wantPrefix := "data:image/jpeg;base64,"
	if got := content[0].ImageURL.URL; !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("image URL prefix = %q, want %q", got, wantPrefix)
	}
	if content[1].Type != "text" {
		t.Errorf("second part type = %q, want text", content[1].Type)
	}
}

func TestProvider_Generate_NoImageInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatBody(`{"role":"assistant","content":"sorry, text only","refusal":null}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	req := models.NewRequest("a red circle")
	req.WireID = "google/gemini-3-pro-image-preview"

	_, err := p.Generate(context.Background(), req)
	if !errors.Is(err, provider.ErrNoImage) {
		t.Fatalf("Generate() error = %v, want ErrNoImage", err)
	}
	// Diagnosability: the observed message keys are part of the error.
	for _, key := range []string{"content", "refusal", "role"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q missing observed key %q", err, key)
		}
	}
}

func TestProvider_Generate_StatusErrorNotRetried(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid key","code":401}}`)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	req := models.NewRequest("a red circle")
	req.WireID = "google/gemini-3-pro-image-preview"

	_, err := p.Generate(context.Background(), req)
	if !errors.Is(err, provider.ErrRequestFailed) {
		t.Fatalf("Generate() error = %v, want ErrRequestFailed", err)
	}
	if !strings.Contains(err.Error(), "invalid key") {
		t.Errorf("error %q missing API message", err)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (status errors are not retried)", requests)
	}
}

func TestProvider_Generate_TransientFailureRetried(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			// Drop the connection so the client sees a transport error.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("server does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		fmt.Fprint(w, chatBody(fmt.Sprintf(`{"images":[%q]}`, dataURL())))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	req := models.NewRequest("a red circle")
	req.WireID = "google/gemini-3-pro-image-preview"

	payload, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if string(payload.Data) != string(pngBytes) {
		t.Errorf("payload data mismatch")
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
}

func TestProvider_Generate_RetryExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	p := newTestProvider(t, server.URL)

	req := models.NewRequest("a red circle")
	req.WireID = "google/gemini-3-pro-image-preview"

	_, err := p.Generate(context.Background(), req)
	if err == nil {
		t.Fatal("Generate() error = nil, want transport error after retries")
	}
	if !strings.Contains(err.Error(), "failed to send request") {
		t.Errorf("error = %v, want wrapped transport failure", err)
	}
}

func TestProvider_Generate_EmptyPrompt(t *testing.T) {
	p := newTestProvider(t, "http://unused.invalid")

	_, err := p.Generate(context.Background(), models.NewRequest(""))
	if !errors.Is(err, models.ErrEmptyPrompt) {
		t.Errorf("Generate() error = %v, want ErrEmptyPrompt", err)
	}
}
