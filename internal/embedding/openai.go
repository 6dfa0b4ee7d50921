package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// OpenAIConfig configures the OpenAI embeddings client.
type OpenAIConfig struct {
	APIKey  string
	Model   string        // default: text-embedding-3-small
	BaseURL string        // default: https://api.openai.com
	Timeout time.Duration // default: 30s

	// Dimensions shortens the returned vectors when non-zero. Only the
	// text-embedding-3 models accept it.
	Dimensions int
}

// OpenAIClient embeds text through an OpenAI-compatible /v1/embeddings endpoint.
type OpenAIClient struct {
	cfg     OpenAIConfig
	header  http.Header
	client  *http.Client
	breaker *Breaker
}

var _ Embedder = (*OpenAIClient)(nil)

// NewOpenAIClient applies defaults to cfg and creates the client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)

	return &OpenAIClient{
		cfg:     cfg,
		header:  header,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: NewBreaker("openai-embed", DefaultBreakerConfig()),
	}
}

type openAIRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the vector for text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := c.breaker.Embed(ctx, func() ([]float64, error) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		var out openAIResponse
		in := openAIRequest{Model: c.cfg.Model, Input: text, Dimensions: c.cfg.Dimensions}
		if err := postJSON(ctx, c.client, "openai", c.cfg.BaseURL+"/v1/embeddings", c.header, in, &out); err != nil {
			return nil, err
		}
		if len(out.Data) == 0 {
			return nil, errors.New("openai returned no embeddings")
		}
		sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
		if len(out.Data[0].Embedding) == 0 {
			return nil, errors.New("openai returned an empty embedding")
		}
		return out.Data[0].Embedding, nil
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, fmt.Errorf("openai embeddings unavailable: %w", err)
	}
	return vec, err
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.cfg.Model
}
