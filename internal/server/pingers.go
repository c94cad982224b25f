package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/54b3r/chartchat-go/internal/vectorstore"
)

// StorePinger reports whether the vector store holds a loaded record set.
// It satisfies the Pinger interface and is used by GET /api/ready. An
// unloaded store is a degraded state (retrieval falls back to exact search),
// so operators want to see it on the readiness surface.
type StorePinger struct {
	// store is the vector store to inspect.
	store *vectorstore.Store
}

// NewStorePinger constructs a StorePinger over the given store.
func NewStorePinger(s *vectorstore.Store) *StorePinger {
	return &StorePinger{store: s}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "vectorstore" }

// Ping returns nil when embeddings are loaded.
func (p *StorePinger) Ping(_ context.Context) error {
	if !p.store.Initialized() {
		return vectorstore.ErrUninitialized
	}
	return nil
}

// APIPinger probes the OpenAI-compatible endpoint with a zero-cost GET
// /models request — no tokens are consumed. It satisfies the Pinger
// interface and is used by GET /api/ready.
type APIPinger struct {
	// baseURL is the API base, e.g. "https://api.openai.com/v1".
	baseURL string
	// apiKey is the Bearer token.
	apiKey string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewAPIPinger constructs an APIPinger for the given endpoint.
func NewAPIPinger(baseURL, apiKey string) *APIPinger {
	return &APIPinger{baseURL: baseURL, apiKey: apiKey, client: &http.Client{}}
}

// Name returns the dependency label used in readiness responses.
func (p *APIPinger) Name() string { return "model-api" }

// Ping sends GET /models and treats any 2xx answer as healthy.
func (p *APIPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
