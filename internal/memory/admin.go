package memory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/easeaico/roleplay-relay/internal/types"
)

// ErrVectorDisabled is returned by admin operations without a vector backend.
var ErrVectorDisabled = errors.New("vector memory backend is not configured")

// MetaCharacter is the metadata key that scopes vector documents.
const MetaCharacter = "personagem"

// Admin copies flat memories into the vector backend and clears them.
type Admin struct {
	rows    MemoryRepo
	vectors VectorStore
	now     func() time.Time
}

// NewAdmin creates an Admin. vectors may be nil when the backend is disabled.
func NewAdmin(rows MemoryRepo, vectors VectorStore) *Admin {
	return &Admin{rows: rows, vectors: vectors, now: time.Now}
}

// Seed inserts every flat memory row of the character as a vector document.
func (a *Admin) Seed(ctx context.Context, character string) (int, error) {
	if a.vectors == nil {
		return 0, ErrVectorDisabled
	}
	items, err := NewFlatRetriever(a.rows).List(ctx, character)
	if err != nil {
		return 0, err
	}

	docs := make([]types.VectorDocument, 0, len(items))
	for _, item := range items {
		line := FormatItem(item)
		if line == "" {
			continue
		}
		docs = append(docs, a.document(character, line, map[string]string{
			"tipo":  item.Type,
			"data":  item.Date,
			"fonte": "seed",
		}))
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := a.vectors.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("failed to seed memories: %w", err)
	}
	return len(docs), nil
}

// Initial stores the character's static introduction as its first document.
func (a *Admin) Initial(ctx context.Context, c *types.Character) error {
	if a.vectors == nil {
		return ErrVectorDisabled
	}
	text := strings.TrimSpace(c.Introduction())
	if text == "" {
		return fmt.Errorf("character %q has no introduction text: %w", c.Name, types.ErrValidation)
	}
	doc := a.document(c.Name, text, map[string]string{"fonte": "inicial"})
	if err := a.vectors.Add(ctx, []types.VectorDocument{doc}); err != nil {
		return fmt.Errorf("failed to store initial memory: %w", err)
	}
	return nil
}

// Clear deletes every vector document of the character.
func (a *Admin) Clear(ctx context.Context, character string) (int, error) {
	if a.vectors == nil {
		return 0, ErrVectorDisabled
	}
	n, err := a.vectors.DeleteByCharacter(ctx, character)
	if err != nil {
		return 0, fmt.Errorf("failed to clear memories: %w", err)
	}
	return n, nil
}

func (a *Admin) document(character, content string, meta map[string]string) types.VectorDocument {
	metadata := map[string]string{MetaCharacter: types.NormalizeName(character)}
	for k, v := range meta {
		if v != "" {
			metadata[k] = v
		}
	}
	return types.VectorDocument{
		ID:        ulid.MustNew(ulid.Timestamp(a.now()), rand.Reader).String(),
		Character: types.NormalizeName(character),
		Content:   content,
		Metadata:  metadata,
	}
}
