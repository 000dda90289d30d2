package vectorhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeaico/roleplay-relay/internal/types"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	queries []string
	docs    []string
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, text)
	return []float32{0.5, 0.25}, nil
}

func (e *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = append(e.docs, texts...)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			out[i] = []float32{float32(len(text))}
		}
	}
	return out, nil
}

type recorded struct {
	path string
	body map[string]any
}

type fakeChroma struct {
	mu       sync.Mutex
	calls    []recorded
	response map[string]string
	status   int
}

func (f *fakeChroma) handler(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.calls = append(f.calls, recorded{path: r.URL.Path, body: body})
	f.mu.Unlock()

	if strings.HasSuffix(r.URL.Path, "/collections") {
		_, _ = w.Write([]byte(`{"id":"col-1","name":"memorias"}`))
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
		return
	}
	op := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	resp, ok := f.response[op]
	if !ok {
		resp = `{}`
	}
	_, _ = w.Write([]byte(resp))
}

func newTestClient(t *testing.T, f *fakeChroma) *Client {
	return newTestClientAt(t, f, "", &fakeEmbedder{})
}

func newTestClientAt(t *testing.T, f *fakeChroma, apiPath string, embedder *fakeEmbedder) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", apiPath, "memorias", embedder)
}

func TestQueryScopesByCharacter(t *testing.T) {
	f := &fakeChroma{response: map[string]string{
		"query": `{"ids":[["a","b"]],"documents":[["Gosta de café"," ","Tem um gato"]]}`,
	}}
	embedder := &fakeEmbedder{}
	client := newTestClientAt(t, f, "", embedder)

	docs, err := client.Query(context.Background(), " Ana ", "café", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gosta de café", "Tem um gato"}, docs)

	require.Len(t, f.calls, 2)
	query := f.calls[1]
	assert.Equal(t, "/api/v1/collections/col-1/query", query.path)
	assert.Equal(t, map[string]any{"personagem": "ana"}, query.body["where"])
	assert.EqualValues(t, 3, query.body["n_results"])
	assert.Equal(t, []any{[]any{0.5, 0.25}}, query.body["query_embeddings"])
	assert.NotContains(t, query.body, "query_texts")
	assert.Equal(t, []string{"café"}, embedder.queries)
}

func TestQueryUsesConfiguredAPIPath(t *testing.T) {
	f := &fakeChroma{response: map[string]string{"query": `{"documents":[["x"]]}`}}
	client := newTestClientAt(t, f, "api/v2/tenants/default_tenant/databases/default_database/", &fakeEmbedder{})

	_, err := client.Query(context.Background(), "Ana", "oi", 1)
	require.NoError(t, err)

	require.Len(t, f.calls, 2)
	assert.Equal(t, "/api/v2/tenants/default_tenant/databases/default_database/collections", f.calls[0].path)
	assert.Equal(t, "/api/v2/tenants/default_tenant/databases/default_database/collections/col-1/query", f.calls[1].path)
}

func TestQueryEmptyResult(t *testing.T) {
	f := &fakeChroma{response: map[string]string{"query": `{"documents":[[]]}`}}
	docs, err := newTestClient(t, f).Query(context.Background(), "Ana", "oi", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestQueryServiceError(t *testing.T) {
	f := &fakeChroma{status: http.StatusInternalServerError}
	_, err := newTestClient(t, f).Query(context.Background(), "Ana", "oi", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestAddSendsMetadata(t *testing.T) {
	f := &fakeChroma{}
	embedder := &fakeEmbedder{}
	client := newTestClientAt(t, f, "", embedder)

	err := client.Add(context.Background(), []types.VectorDocument{
		{ID: "01H", Character: "Ana", Content: "Primeiro encontro", Metadata: map[string]string{"tipo": "evento"}},
	})
	require.NoError(t, err)

	add := f.calls[len(f.calls)-1]
	assert.Equal(t, "/api/v1/collections/col-1/add", add.path)
	assert.Equal(t, []any{"01H"}, add.body["ids"])
	metas := add.body["metadatas"].([]any)
	assert.Equal(t, "ana", metas[0].(map[string]any)["personagem"])
	assert.Equal(t, "evento", metas[0].(map[string]any)["tipo"])
	assert.Equal(t, []any{[]any{float64(len("Primeiro encontro"))}}, add.body["embeddings"])
	assert.Equal(t, []string{"Primeiro encontro"}, embedder.docs)
}

func TestDeleteByCharacterCountsIDs(t *testing.T) {
	f := &fakeChroma{response: map[string]string{"get": `{"ids":["a","b","c"]}`}}
	client := newTestClient(t, f)

	n, err := client.DeleteByCharacter(context.Background(), "Ana")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	last := f.calls[len(f.calls)-1]
	assert.Equal(t, "/api/v1/collections/col-1/delete", last.path)
	assert.Equal(t, map[string]any{"personagem": "ana"}, last.body["where"])
}

func TestCollectionResolvedOnce(t *testing.T) {
	f := &fakeChroma{response: map[string]string{"query": `{"documents":[["x"]]}`}}
	client := newTestClient(t, f)
	for i := 0; i < 3; i++ {
		_, err := client.Query(context.Background(), "Ana", "oi", 1)
		require.NoError(t, err)
	}
	resolves := 0
	for _, c := range f.calls {
		if c.path == "/api/v1/collections" {
			resolves++
		}
	}
	assert.Equal(t, 1, resolves)
}

func TestAddRejectsBlankDocument(t *testing.T) {
	f := &fakeChroma{}
	err := newTestClient(t, f).Add(context.Background(), []types.VectorDocument{
		{ID: "01H", Character: "Ana", Content: "  "},
	})
	require.ErrorIs(t, err, types.ErrValidation)
	for _, c := range f.calls {
		assert.NotContains(t, c.path, "/add")
	}
}
