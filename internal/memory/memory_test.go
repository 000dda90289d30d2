package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/easeaico/roleplay-relay/internal/types"
)

type mockMemoryRepo struct {
	items []types.MemoryItem
	err   error
}

func (r *mockMemoryRepo) ListByCharacter(ctx context.Context, character string) ([]types.MemoryItem, error) {
	return r.items, r.err
}

type mockVectorStore struct {
	added    []types.VectorDocument
	results  []string
	err      error
	deleted  []string
	queries  []string
	removedN int
}

func (s *mockVectorStore) Add(ctx context.Context, docs []types.VectorDocument) error {
	if s.err != nil {
		return s.err
	}
	s.added = append(s.added, docs...)
	return nil
}

func (s *mockVectorStore) Query(ctx context.Context, character, text string, topN int) ([]string, error) {
	s.queries = append(s.queries, character+"|"+text)
	return s.results, s.err
}

func (s *mockVectorStore) DeleteByCharacter(ctx context.Context, character string) (int, error) {
	s.deleted = append(s.deleted, character)
	return s.removedN, s.err
}

func TestSortByDateNewestFirstUnparseableLast(t *testing.T) {
	items := []types.MemoryItem{
		{Title: "a", Date: "01/02/2023"},
		{Title: "b", Date: "ontem"},
		{Title: "c", Date: "15/08/2024"},
		{Title: "d", Date: ""},
		{Title: "e", Date: "2023-06-01"},
	}
	SortByDate(items)

	var got []string
	for _, item := range items {
		got = append(got, item.Title)
	}
	want := "c,e,a,b,d"
	if strings.Join(got, ",") != want {
		t.Fatalf("expected order %s, got %s", want, strings.Join(got, ","))
	}
}

func TestFormatItemSkipsEmptyFields(t *testing.T) {
	line := FormatItem(types.MemoryItem{Content: "Gosta de café"})
	if line != "Gosta de café" {
		t.Fatalf("unexpected line: %q", line)
	}

	line = FormatItem(types.MemoryItem{
		Type:      "evento",
		Emotion:   "alegria",
		Title:     "Primeiro encontro",
		Date:      "10/03/2024",
		Content:   "Jantar na praia",
		Relevance: "alta",
	})
	want := "[evento] (alegria) Primeiro encontro - 10/03/2024: Jantar na praia [relevância: alta]"
	if line != want {
		t.Fatalf("expected %q, got %q", want, line)
	}
}

func TestFlatRetrieverScopesByCharacter(t *testing.T) {
	repo := &mockMemoryRepo{items: []types.MemoryItem{
		{Character: "Ana", Content: "um", Date: "01/01/2024"},
		{Character: "Jennifer", Content: "outro"},
		{Character: " ana ", Content: "dois", Date: "02/01/2024"},
	}}
	recall := NewFlatRetriever(repo).Recall(context.Background(), "ANA", "ignored")

	if recall.Outcome != OutcomeOK {
		t.Fatalf("expected ok outcome, got %s", recall.Outcome)
	}
	if len(recall.Items) != 2 || recall.Items[0] != "02/01/2024: dois" {
		t.Fatalf("unexpected items: %v", recall.Items)
	}
}

func TestFlatRetrieverUnavailable(t *testing.T) {
	repo := &mockMemoryRepo{err: errors.New("quota exceeded")}
	recall := NewFlatRetriever(repo).Recall(context.Background(), "Ana", "")

	if recall.Outcome != OutcomeUnavailable || recall.Err == nil {
		t.Fatalf("expected unavailable outcome, got %+v", recall)
	}
	if got := recall.OrFallback("intro"); len(got) != 1 || got[0] != "intro" {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestVectorRetrieverEmptyFallsBack(t *testing.T) {
	store := &mockVectorStore{}
	recall := NewVectorRetriever(store, 3).Recall(context.Background(), "Ana", "oi")

	if recall.Outcome != OutcomeEmpty {
		t.Fatalf("expected empty outcome, got %s", recall.Outcome)
	}
	if got := recall.OrFallback("Sou a Ana."); len(got) != 1 || got[0] != "Sou a Ana." {
		t.Fatalf("expected intro fallback, got %v", got)
	}
}

func TestVectorRetrieverTruncatesToTopK(t *testing.T) {
	store := &mockVectorStore{results: []string{"a", " ", "b", "c", "d"}}
	recall := NewVectorRetriever(store, 2).Recall(context.Background(), "Ana", "oi")

	if recall.Outcome != OutcomeOK || len(recall.Items) != 2 {
		t.Fatalf("unexpected recall: %+v", recall)
	}
	if len(store.queries) != 1 || store.queries[0] != "Ana|oi" {
		t.Fatalf("unexpected queries: %v", store.queries)
	}
}

func TestVectorRetrieverError(t *testing.T) {
	store := &mockVectorStore{err: errors.New("timeout")}
	recall := NewVectorRetriever(store, 2).Recall(context.Background(), "Ana", "oi")
	if recall.Outcome != OutcomeUnavailable {
		t.Fatalf("expected unavailable, got %s", recall.Outcome)
	}
}

func TestAdminSeedCopiesRows(t *testing.T) {
	rows := &mockMemoryRepo{items: []types.MemoryItem{
		{Character: "Ana", Content: "um"},
		{Character: "Ana", Content: "dois"},
		{Character: "Bia", Content: "três"},
	}}
	store := &mockVectorStore{}
	n, err := NewAdmin(rows, store).Seed(context.Background(), "Ana")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 2 || len(store.added) != 2 {
		t.Fatalf("expected 2 documents, got %d/%d", n, len(store.added))
	}
	for _, doc := range store.added {
		if doc.ID == "" || doc.Metadata[MetaCharacter] != "ana" {
			t.Fatalf("unexpected document: %+v", doc)
		}
	}
	if store.added[0].ID == store.added[1].ID {
		t.Fatalf("expected distinct document ids")
	}
}

func TestAdminWithoutVectorsIsDisabled(t *testing.T) {
	admin := NewAdmin(&mockMemoryRepo{}, nil)
	if _, err := admin.Seed(context.Background(), "Ana"); !errors.Is(err, ErrVectorDisabled) {
		t.Fatalf("expected ErrVectorDisabled, got %v", err)
	}
	if _, err := admin.Clear(context.Background(), "Ana"); !errors.Is(err, ErrVectorDisabled) {
		t.Fatalf("expected ErrVectorDisabled, got %v", err)
	}
}

func TestAdminInitialRequiresIntroduction(t *testing.T) {
	store := &mockVectorStore{}
	admin := NewAdmin(&mockMemoryRepo{}, store)

	err := admin.Initial(context.Background(), &types.Character{Name: "Ana"})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = admin.Initial(context.Background(), &types.Character{
		Name:       "Ana",
		Attributes: map[string]string{types.AttrIntroduction: "Oi, sou a Ana."},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(store.added) != 1 || store.added[0].Content != "Oi, sou a Ana." {
		t.Fatalf("unexpected documents: %+v", store.added)
	}
}

func TestAdminClear(t *testing.T) {
	store := &mockVectorStore{removedN: 4}
	n, err := NewAdmin(&mockMemoryRepo{}, store).Clear(context.Background(), "Ana")
	if err != nil || n != 4 {
		t.Fatalf("unexpected clear result: %d, %v", n, err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "Ana" {
		t.Fatalf("unexpected deletes: %v", store.deleted)
	}
}
