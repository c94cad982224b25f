// Package llm talks to the OpenAI-compatible embedding and chat completion
// endpoints via plain HTTP — no SDK dependencies are required. The assistant
// uses two chat models (a generator and a cheaper validator) plus one
// embedding model, all behind the same base URL and API key.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrMalformedResponse is returned when the remote service answers with 2xx
// but the body is missing the expected payload (no choices, no embedding).
var ErrMalformedResponse = errors.New("llm: malformed response")

// ServiceError is a non-2xx answer from the embedding or completion service.
type ServiceError struct {
	// Service names the failing endpoint: "embeddings" or "completions".
	Service string
	// StatusCode is the HTTP status of the failed call.
	StatusCode int
	// Message is the error message from the response body, if any.
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm: %s: HTTP %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm: %s: HTTP %d", e.Service, e.StatusCode)
}

// ChatMessage is one turn of a chat completion conversation.
type ChatMessage struct {
	// Role is "system", "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// Sampling holds the completion sampling parameters sent with every request.
type Sampling struct {
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
}

// DefaultSampling are the generation defaults. The validation pass overrides
// only the temperature.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature:      0.7,
		MaxTokens:        2000,
		TopP:             0.9,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.1,
	}
}

// Config holds the settings shared by both clients.
type Config struct {
	// BaseURL is the API base, e.g. "https://api.openai.com/v1".
	BaseURL string
	// APIKey is the Bearer token.
	APIKey string
	// Timeout bounds each HTTP call. Zero means 60 seconds.
	Timeout time.Duration
}

func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// post sends a JSON body and decodes the JSON answer into out. A non-2xx
// status becomes a *ServiceError carrying the body's error message.
func post(ctx context.Context, client *http.Client, cfg Config, service, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("llm: %s: marshal request: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("llm: %s: create request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("llm: %s: request failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		svcErr := &ServiceError{Service: service, StatusCode: resp.StatusCode}
		if body.Error != nil {
			svcErr.Message = body.Error.Message
		}
		return svcErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llm: %s: decode response: %w", service, err)
	}
	return nil
}

// EmbeddingClient calls the embeddings endpoint. Safe for concurrent use.
type EmbeddingClient struct {
	cfg    Config
	model  string
	client *http.Client
}

// NewEmbeddingClient constructs an EmbeddingClient for the given model.
func NewEmbeddingClient(cfg Config, model string) *EmbeddingClient {
	return &EmbeddingClient{cfg: cfg, model: model, client: cfg.httpClient()}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed converts one text into its embedding vector.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts a batch of texts into embeddings. The returned slice is
// parallel to the input slice; the API may answer out of order, so results
// are placed by index.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result embedResponse
	if err := post(ctx, c.client, c.cfg, "embeddings", "/embeddings", embedRequest{Model: c.model, Input: texts}, &result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("llm: embeddings: expected %d vectors, got %d: %w", len(texts), len(result.Data), ErrMalformedResponse)
	}

	vectors := make([][]float64, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("llm: embeddings: index %d out of range [0, %d): %w", d.Index, len(texts), ErrMalformedResponse)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("llm: embeddings: empty vector at index %d: %w", i, ErrMalformedResponse)
		}
	}
	return vectors, nil
}

// CompletionClient calls the chat completions endpoint. Safe for concurrent
// use; the model is chosen per call so the generator and validator can share
// one client.
type CompletionClient struct {
	cfg    Config
	client *http.Client
}

// NewCompletionClient constructs a CompletionClient.
func NewCompletionClient(cfg Config) *CompletionClient {
	return &CompletionClient{cfg: cfg, client: cfg.httpClient()}
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Sampling
}

type completionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the message list to the given model and returns the first
// choice's content, trimmed of surrounding whitespace.
func (c *CompletionClient) Complete(ctx context.Context, model string, messages []ChatMessage, sampling Sampling) (string, error) {
	req := completionRequest{Model: model, Messages: messages, Sampling: sampling}

	var result completionResponse
	if err := post(ctx, c.client, c.cfg, "completions", "/chat/completions", req, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("llm: completions: no choices: %w", ErrMalformedResponse)
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
