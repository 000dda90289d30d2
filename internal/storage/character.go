package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easeaico/roleplay-relay/internal/character"
	"github.com/easeaico/roleplay-relay/internal/types"
)

type characterModel struct {
	ID         int
	Name       string          `gorm:"uniqueIndex"`
	Usar       string          `gorm:"column:usar"`
	Attributes json.RawMessage `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (characterModel) TableName() string {
	return "characters"
}

// CharacterRepo accesses characters data.
type CharacterRepo struct {
	db *gorm.DB
}

var _ character.Repo = (*CharacterRepo)(nil)

// NewCharacterRepo returns a CharacterRepo.
func NewCharacterRepo(db *gorm.DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

func (r *CharacterRepo) All(ctx context.Context) ([]types.Character, error) {
	var records []characterModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}
	results := make([]types.Character, 0, len(records))
	for _, record := range records {
		results = append(results, characterFromModel(record))
	}
	return results, nil
}

// Upsert creates or replaces a character by name.
func (r *CharacterRepo) Upsert(ctx context.Context, c types.Character) error {
	attrs, err := marshalJSON(c.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode character attributes: %w", err)
	}
	usar := "não"
	if c.Enabled {
		usar = types.EnabledSentinel
	}
	record := characterModel{
		Name:       c.Name,
		Usar:       usar,
		Attributes: attrs,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"usar", "attributes", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to upsert character: %w", err)
	}
	return nil
}

func characterFromModel(model characterModel) types.Character {
	attrs := map[string]string{}
	if err := unmarshalJSON(model.Attributes, &attrs); err != nil {
		slog.Warn("failed to decode character attributes", "character", model.Name, "error", err)
	}
	return types.Character{
		Name:       model.Name,
		Enabled:    types.IsEnabled(model.Usar),
		Attributes: attrs,
	}
}

// marshalJSON encodes a value into JSONB, returning nil for empty values.
func marshalJSON(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// unmarshalJSON decodes JSONB into the provided target.
func unmarshalJSON(data json.RawMessage, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
