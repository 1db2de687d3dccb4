package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"ytrag/internal/domain"
)

// Client is an embeddings client for a local Ollama server.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	client     *http.Client
	maxRetries int
}

// Config configures the Ollama embeddings client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: 5,
	}
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "ollama" }

// Dimension returns the dimensionality of the produced embedding vectors.
// It is fixed lazily by the first successful Embed call.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	type reqBody struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	url := fmt.Sprintf("%s/api/embeddings", c.baseURL)
	data, _ := json.Marshal(reqBody{Model: c.model, Prompt: text})

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "building request failed", goerr.V("cause", err))
		}
		req.Header.Set("Content-Type", "application/json")

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
			lastErr = fmt.Errorf("ollama embeddings failed: %s", resp.Status)
			if attempt < c.maxRetries && sleepRetry(ctx, delay) == nil {
				continue
			}
			break
		}

		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "ollama embeddings failed",
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
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "decoding embedding response failed", goerr.V("cause", err))
		}
		if len(out.Embedding) == 0 {
			return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "no embedding returned", goerr.V("model", c.model))
		}
		if c.dimension == 0 {
			c.dimension = len(out.Embedding)
		}
		return out.Embedding, nil
	}
	return nil, goerr.Wrap(domain.ErrEmbeddingProvider, "ollama embeddings failed after retries",
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
