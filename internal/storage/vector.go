package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/easeaico/roleplay-relay/internal/memory"
	"github.com/easeaico/roleplay-relay/internal/types"
)

// vectorModel maps to the memory_vectors table.
type vectorModel struct {
	ID        string          `gorm:"primaryKey"`
	Character string          `gorm:"column:personagem;index"`
	Content   string
	Metadata  json.RawMessage `gorm:"type:jsonb"`
	// Embedding stores vector representation for similarity search.
	Embedding *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time
}

func (vectorModel) TableName() string {
	return "memory_vectors"
}

// VectorRepo is the embedded vector store.
type VectorRepo struct {
	db       *gorm.DB
	embedder memory.Embedder
}

var _ memory.VectorStore = (*VectorRepo)(nil)

// NewVectorRepo returns a VectorRepo.
func NewVectorRepo(db *gorm.DB, embedder memory.Embedder) *VectorRepo {
	return &VectorRepo{db: db, embedder: embedder}
}

func (r *VectorRepo) Add(ctx context.Context, docs []types.VectorDocument) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.Character == "" {
			return fmt.Errorf("vector document has no character: %w", types.ErrValidation)
		}
		texts = append(texts, doc.Content)
	}
	embeddings, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]vectorModel, 0, len(docs))
	for i, doc := range docs {
		var vector *pgvector.Vector
		if len(embeddings[i]) > 0 {
			v := pgvector.NewVector(embeddings[i])
			vector = &v
		}
		meta, err := marshalJSON(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode vector metadata: %w", err)
		}
		records = append(records, vectorModel{
			ID:        doc.ID,
			Character: types.NormalizeName(doc.Character),
			Content:   doc.Content,
			Metadata:  meta,
			Embedding: vector,
		})
	}
	if err := r.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("failed to insert vector documents: %w", err)
	}
	return nil
}

// Query returns the topN nearest documents by cosine distance.
func (r *VectorRepo) Query(ctx context.Context, character, text string, topN int) ([]string, error) {
	embedding, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, nil
	}

	query := `
		SELECT content
		FROM memory_vectors
		WHERE personagem = $1
		  AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3`

	var results []string
	if err := r.db.WithContext(ctx).
		Raw(query, types.NormalizeName(character), pgvector.NewVector(embedding), topN).
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to search similar memories: %w", err)
	}
	return results, nil
}

func (r *VectorRepo) DeleteByCharacter(ctx context.Context, character string) (int, error) {
	res := r.db.WithContext(ctx).
		Where("personagem = ?", types.NormalizeName(character)).
		Delete(&vectorModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete vector documents: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
