package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"google.golang.org/genai"
)

// NewEmbedder wraps a provider client in langchaingo's batching embedder.
// Every batch sent to the provider goes through policy.
func NewEmbedder(client embeddings.EmbedderClient, policy *CallPolicy, batchSize int) (embeddings.Embedder, error) {
	opts := []embeddings.Option{}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	return embeddings.NewEmbedder(&guardedEmbedderClient{inner: client, policy: policy}, opts...)
}

type guardedEmbedderClient struct {
	inner  embeddings.EmbedderClient
	policy *CallPolicy
}

func (g *guardedEmbedderClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := g.policy.Do(ctx, "embed", func(ctx context.Context) error {
		var err error
		out, err = g.inner.CreateEmbedding(ctx, texts)
		return err
	})
	if err == nil && len(out) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(out), len(texts))
	}
	return out, err
}

// GeminiEmbeddingClient embeds text with a Gemini embedding model.
type GeminiEmbeddingClient struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbeddingClient(client *genai.Client, model string) *GeminiEmbeddingClient {
	return &GeminiEmbeddingClient{client: client, model: model}
}

func (g *GeminiEmbeddingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	result, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed call failed: %w", err)
	}
	vectors := make([][]float32, 0, len(result.Embeddings))
	for _, e := range result.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("gemini returned a nil embedding")
		}
		vectors = append(vectors, e.Values)
	}
	return vectors, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// OllamaEmbeddingClient generates embeddings with a local Ollama server.
type OllamaEmbeddingClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewOllamaEmbeddingClient(httpClient *http.Client, baseURL, model string) *OllamaEmbeddingClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaEmbeddingClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

// CreateEmbedding calls /api/embeddings once per text; the endpoint takes a single prompt.
func (o *OllamaEmbeddingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := o.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (o *OllamaEmbeddingClient) embedOne(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var ollamaResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return ollamaResp.Embedding, nil
}
