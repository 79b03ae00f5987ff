package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/codeindexer/indexer/internal/ierr"
)

// OllamaConfig configures the HTTP embedding driver (spec §6.1), matching
// the teacher's OllamaEmbeddingConfig fields (internal/config APIURL, APIKey,
// Model, Dimension).
type OllamaConfig struct {
	APIURL    string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration // per-call timeout (spec §5 Timeouts)
}

// Ollama is the HTTP-based Embedder driver.
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client
	logger *zap.Logger
}

// NewOllama validates cfg and builds a driver. An empty APIURL, Model, or a
// non-positive Dimension is a ConfigError (spec §7).
func NewOllama(cfg OllamaConfig, logger *zap.Logger) (*Ollama, error) {
	if cfg.APIURL == "" {
		return nil, ierr.Newf(ierr.ConfigError, "embedder: api url is required")
	}
	if cfg.Model == "" {
		return nil, ierr.Newf(ierr.ConfigError, "embedder: model is required")
	}
	if cfg.Dimension <= 0 {
		return nil, ierr.Newf(ierr.ConfigError, "embedder: dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Ollama{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

func (o *Ollama) Dimension() int { return o.cfg.Dimension }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ierr.Newf(ierr.ResourceError, "embedder: empty response for single embed call")
	}
	return vecs[0], nil
}

// EmbedBatch calls the Ollama-compatible /api/embed endpoint once with every
// text in texts, returning vectors in the same order (spec §6.1 embed_batch).
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: o.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	url := o.cfg.APIURL + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, ierr.New(ierr.ResourceError, fmt.Errorf("call embedder: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.New(ierr.ResourceError, fmt.Errorf("read embedder response: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ierr.Newf(ierr.AuthError, "embedder rejected credentials: %s", string(data))
	case http.StatusOK:
		// fall through
	default:
		return nil, ierr.New(ierr.ResourceError, fmt.Errorf("embedder returned %d: %s", resp.StatusCode, string(data)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(parsed.Embeddings), len(texts))
	}
	for i, v := range parsed.Embeddings {
		if len(v) != o.cfg.Dimension {
			return nil, fmt.Errorf("embedder vector %d has dimension %d, want %d", i, len(v), o.cfg.Dimension)
		}
	}
	return parsed.Embeddings, nil
}
