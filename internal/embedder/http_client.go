package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragengine/internal/config"
)

// httpClient embeds text via either Ollama's native /api/embed endpoint or
// an OpenAI-compatible /v1/embeddings endpoint, chosen by cfg.Provider.
type httpClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

func newHTTPClient(cfg config.EmbeddingConfig) *httpClient {
	return &httpClient{cfg: cfg, client: &http.Client{Timeout: 60 * time.Second}}
}

func (c *httpClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.EqualFold(c.cfg.Provider, "openai") {
		return c.embedOpenAI(ctx, texts)
	}
	return c.embedOllama(ctx, texts)
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *httpClient) embedOllama(ctx context.Context, texts []string) ([][]float32, error) {
	base := strings.TrimSuffix(c.cfg.OllamaURL, "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	body, err := json.Marshal(ollamaEmbedRequest{Model: c.cfg.Model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ollama embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed error %d: %s", resp.StatusCode, string(respBody))
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decoding ollama embed response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("unexpected embedding count: got %d, want %d", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *httpClient) embedOpenAI(ctx context.Context, texts []string) ([][]float32, error) {
	base := strings.TrimSuffix(c.cfg.OpenAIBaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	body, err := json.Marshal(openaiEmbedRequest{Model: c.cfg.Model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.OpenAIAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embed request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading openai embed response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("openai embed error %d: %s", resp.StatusCode, string(respBody))
	}

	var out openaiEmbedResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decoding openai embed response: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected embedding count: got %d, want %d", len(out.Data), len(texts))
	}
	result := make([][]float32, len(out.Data))
	for i := range out.Data {
		result[i] = out.Data[i].Embedding
	}
	return result, nil
}
