package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// Embedder turns memory text into vectors. EmbedDocuments keeps the input
// order; blank texts get a nil vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingDimensions is the vector width stored in memory_vectors.
const EmbeddingDimensions = 768

// maxEmbedBatch is the Gemini limit of contents per embed request.
const maxEmbedBatch = 100

const (
	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"
)

type embedFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)

// GenAIEmbedder embeds through the Gemini API, sending a whole seed batch
// in as few requests as possible.
type GenAIEmbedder struct {
	embed embedFunc
	model string
}

// NewEmbedder creates the GenAI embedder.
func NewEmbedder(ctx context.Context, apiKey, modelName string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google api key is required for embeddings")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGenAIEmbedder(client.Models.EmbedContent, modelName), nil
}

func newGenAIEmbedder(embed embedFunc, modelName string) *GenAIEmbedder {
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &GenAIEmbedder{embed: embed, model: modelName}
}

// EmbedQuery embeds the user's message. A blank message has no vector.
func (e *GenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	vecs, err := e.request(ctx, taskQuery, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	pending := make([]int, 0, min(len(texts), maxEmbedBatch))
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := make([]string, len(pending))
		for i, idx := range pending {
			batch[i] = strings.TrimSpace(texts[idx])
		}
		vecs, err := e.request(ctx, taskDocument, batch)
		if err != nil {
			return err
		}
		for i, idx := range pending {
			out[idx] = vecs[i]
		}
		pending = pending[:0]
		return nil
	}

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pending = append(pending, i)
		if len(pending) == maxEmbedBatch {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *GenAIEmbedder) request(ctx context.Context, task string, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}
	dims := int32(EmbeddingDimensions)
	resp, err := e.embed(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             task,
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d texts: %w", len(texts), err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts", got, len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("embedding %d missing from response", i)
		}
		vec, err := e.fit(emb.Values)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// fit truncates wider vectors to the stored width; narrower ones cannot be
// compared against the column and are rejected.
func (e *GenAIEmbedder) fit(values []float32) ([]float32, error) {
	switch {
	case len(values) == EmbeddingDimensions:
		return values, nil
	case len(values) > EmbeddingDimensions:
		slog.Warn("embedding wider than memory_vectors, truncating",
			"actual", len(values), "target", EmbeddingDimensions, "model", e.model)
		return values[:EmbeddingDimensions], nil
	default:
		return nil, fmt.Errorf("embedding dimensions mismatch: got %d want %d", len(values), EmbeddingDimensions)
	}
}
