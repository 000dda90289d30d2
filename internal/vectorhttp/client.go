// Package vectorhttp is a client for a Chroma-compatible vector-search
// service. Documents are scoped by the "personagem" metadata field.
package vectorhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/easeaico/roleplay-relay/internal/memory"
	"github.com/easeaico/roleplay-relay/internal/types"
)

var _ memory.VectorStore = (*Client)(nil)

// Client talks to one collection. Embeddings are always computed locally;
// the service only stores and searches vectors.
type Client struct {
	baseURL    string
	apiPath    string
	collection string
	embedder   memory.Embedder
	http       *http.Client

	mu           sync.Mutex
	collectionID string
}

// NewClient creates a Client. apiPath is the collections prefix, "/api/v1"
// for Chroma 0.x or "/api/v2/tenants/<t>/databases/<d>" for Chroma 1.x.
func NewClient(baseURL, apiPath, collection string, embedder memory.Embedder) *Client {
	apiPath = "/" + strings.Trim(apiPath, "/")
	if apiPath == "/" {
		apiPath = "/api/v1"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiPath:    apiPath,
		collection: collection,
		embedder:   embedder,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Add(ctx context.Context, docs []types.VectorDocument) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(docs))
	texts := make([]string, 0, len(docs))
	metas := make([]map[string]string, 0, len(docs))
	for _, doc := range docs {
		meta := map[string]string{memory.MetaCharacter: types.NormalizeName(doc.Character)}
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		ids = append(ids, doc.ID)
		texts = append(texts, doc.Content)
		metas = append(metas, meta)
	}
	embeddings, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return fmt.Errorf("document %s has no text to embed: %w", ids[i], types.ErrValidation)
		}
	}

	_, err = c.collectionCall(ctx, "add", map[string]any{
		"ids":        ids,
		"documents":  texts,
		"metadatas":  metas,
		"embeddings": embeddings,
	})
	return err
}

func (c *Client) Query(ctx context.Context, character, text string, topN int) ([]string, error) {
	if topN <= 0 {
		topN = 1
	}
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	raw, err := c.collectionCall(ctx, "query", map[string]any{
		"query_embeddings": [][]float32{vec},
		"n_results":        topN,
		"where":            characterFilter(character),
		"include":          []string{"documents"},
	})
	if err != nil {
		return nil, err
	}

	var results []string
	for _, doc := range gjson.GetBytes(raw, "documents.0").Array() {
		if s := strings.TrimSpace(doc.String()); s != "" {
			results = append(results, s)
		}
	}
	return results, nil
}

func (c *Client) DeleteByCharacter(ctx context.Context, character string) (int, error) {
	where := characterFilter(character)
	raw, err := c.collectionCall(ctx, "get", map[string]any{
		"where":   where,
		"include": []string{},
	})
	if err != nil {
		return 0, err
	}
	n := len(gjson.GetBytes(raw, "ids").Array())
	if n == 0 {
		return 0, nil
	}
	if _, err := c.collectionCall(ctx, "delete", map[string]any{"where": where}); err != nil {
		return 0, err
	}
	return n, nil
}

func characterFilter(character string) map[string]any {
	return map[string]any{memory.MetaCharacter: types.NormalizeName(character)}
}

func (c *Client) collectionCall(ctx context.Context, op string, body any) ([]byte, error) {
	id, err := c.resolveCollection(ctx)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, fmt.Sprintf("%s/collections/%s/%s", c.apiPath, id, op), body)
}

// resolveCollection gets or creates the collection once and caches its id.
func (c *Client) resolveCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}
	raw, err := c.post(ctx, c.apiPath+"/collections", map[string]any{
		"name":          c.collection,
		"get_or_create": true,
	})
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(raw, "id").String()
	if id == "" {
		return "", fmt.Errorf("vector store returned no collection id for %q", c.collection)
	}
	c.collectionID = id
	return id, nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector store request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector store response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "error").String()
		if msg == "" {
			msg = string(raw)
		}
		return nil, fmt.Errorf("vector store error %d: %s", resp.StatusCode, msg)
	}
	return raw, nil
}
