package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"ytrag/internal/domain"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder
// interface.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	client     *http.Client
	maxRetries int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, goerr.New("missing API key", goerr.V("env", cfg.APIKeyEnv))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: 5,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the dimensionality of the produced embedding vectors.
// It is fixed lazily by the first successful Embed call.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	type reqBody struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	data, _ := json.Marshal(reqBody{Input: text, Model: c.model})

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "building request failed", goerr.V("cause", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			if attempt < c.maxRetries && sleepRetry(ctx, retryDelay(attempt)) == nil {
				continue
			}
			break
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			// Respect Retry-After if provided
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
					if delay > maxRetryDelay {
						delay = maxRetryDelay
					}
				}
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("openai embeddings failed: %s", resp.Status)
			if attempt < c.maxRetries && sleepRetry(ctx, delay) == nil {
				continue
			}
			break
		}

		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "openai embeddings failed",
				goerr.V("status", resp.Status), goerr.V("model", c.model))
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries && sleepRetry(ctx, retryDelay(attempt)) == nil {
				continue
			}
			break
		}

		var out struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "decoding embedding response failed", goerr.V("cause", err))
		}
		if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
			return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "no embedding returned", goerr.V("model", c.model))
		}
		v := out.Data[0].Embedding
		if c.dimension == 0 {
			c.dimension = len(v)
		}
		return v, nil
	}
	return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "openai embeddings failed after retries",
		goerr.V("cause", lastErr), goerr.V("model", c.model))
}

const maxRetryDelay = 5 * time.Second

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// sleepRetry waits for d or until ctx is canceled, whichever comes first.
func sleepRetry(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
