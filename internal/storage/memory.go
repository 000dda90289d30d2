package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/roleplay-relay/internal/memory"
	"github.com/easeaico/roleplay-relay/internal/types"
)

// memoryModel maps to the memories table.
type memoryModel struct {
	ID        int
	Character string `gorm:"column:personagem;index"`
	Type      string `gorm:"column:tipo"`
	Emotion   string `gorm:"column:emocao"`
	Title     string `gorm:"column:titulo"`
	Date      string `gorm:"column:data"`
	Relevance string `gorm:"column:relevancia"`
	Content   string `gorm:"column:conteudo"`
	CreatedAt time.Time
}

func (memoryModel) TableName() string {
	return "memories"
}

// MemoryRepo accesses flat memory rows.
type MemoryRepo struct {
	db *gorm.DB
}

var _ memory.MemoryRepo = (*MemoryRepo)(nil)

// NewMemoryRepo returns a MemoryRepo.
func NewMemoryRepo(db *gorm.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

// ListByCharacter returns the character's rows in insertion order.
func (r *MemoryRepo) ListByCharacter(ctx context.Context, character string) ([]types.MemoryItem, error) {
	var records []memoryModel
	if err := r.db.WithContext(ctx).
		Where("LOWER(TRIM(personagem)) = ?", types.NormalizeName(character)).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	results := make([]types.MemoryItem, 0, len(records))
	for _, record := range records {
		results = append(results, memoryFromModel(record))
	}
	return results, nil
}

// Add appends a memory row.
func (r *MemoryRepo) Add(ctx context.Context, item types.MemoryItem) error {
	if strings.TrimSpace(item.Character) == "" {
		return fmt.Errorf("memory has no character: %w", types.ErrValidation)
	}
	record := memoryModel{
		Character: strings.TrimSpace(item.Character),
		Type:      item.Type,
		Emotion:   item.Emotion,
		Title:     item.Title,
		Date:      item.Date,
		Relevance: item.Relevance,
		Content:   item.Content,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// memoryFromModel converts database model to domain struct.
func memoryFromModel(model memoryModel) types.MemoryItem {
	return types.MemoryItem{
		ID:        model.ID,
		Character: model.Character,
		Type:      model.Type,
		Emotion:   model.Emotion,
		Title:     model.Title,
		Date:      model.Date,
		Relevance: model.Relevance,
		Content:   model.Content,
	}
}
