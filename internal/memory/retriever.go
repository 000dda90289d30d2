package memory

import (
	"context"
	"fmt"
	"strings"
)

// VectorRetriever runs a character-scoped similarity query.
type VectorRetriever struct {
	store VectorStore
	topK  int
}

// NewVectorRetriever creates a VectorRetriever.
func NewVectorRetriever(store VectorStore, topK int) *VectorRetriever {
	if topK <= 0 {
		topK = 5
	}
	return &VectorRetriever{
		store: store,
		topK:  topK,
	}
}

// Recall returns up to topK documents. There is no similarity cutoff.
func (r *VectorRetriever) Recall(ctx context.Context, character, query string) Recall {
	if strings.TrimSpace(query) == "" {
		return recallFrom(nil, nil)
	}
	if r.store == nil {
		err := fmt.Errorf("retriever not properly configured")
		logUnavailable("vector", character, err)
		return recallFrom(nil, err)
	}

	docs, err := r.store.Query(ctx, character, query, r.topK)
	if err != nil {
		logUnavailable("vector", character, err)
		return recallFrom(nil, err)
	}

	items := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc = strings.TrimSpace(doc); doc != "" {
			items = append(items, doc)
		}
	}
	if len(items) > r.topK {
		items = items[:r.topK]
	}
	return recallFrom(items, nil)
}
