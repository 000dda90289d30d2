package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/roleplay-relay/internal/roleplay"
	"github.com/easeaico/roleplay-relay/internal/types"
)

type synopsisModel struct {
	ID        int
	Character string `gorm:"column:personagem;index"`
	Text      string `gorm:"column:texto"`
	WordCount int    `gorm:"column:palavras"`
	CreatedAt time.Time
}

func (synopsisModel) TableName() string {
	return "synopses"
}

// SynopsisRepo stores generated recaps.
type SynopsisRepo struct {
	db *gorm.DB
}

var _ roleplay.SynopsisRepo = (*SynopsisRepo)(nil)

// NewSynopsisRepo returns a SynopsisRepo.
func NewSynopsisRepo(db *gorm.DB) *SynopsisRepo {
	return &SynopsisRepo{db: db}
}

func (r *SynopsisRepo) Add(ctx context.Context, s types.Synopsis) error {
	record := synopsisModel{
		Character: types.NormalizeName(s.Character),
		Text:      s.Text,
		WordCount: s.WordCount,
		CreatedAt: s.Timestamp,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert synopsis: %w", err)
	}
	return nil
}

// Latest returns the newest synopsis, or nil when there is none.
func (r *SynopsisRepo) Latest(ctx context.Context, character string) (*types.Synopsis, error) {
	var record synopsisModel
	err := r.db.WithContext(ctx).
		Where("personagem = ?", types.NormalizeName(character)).
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest synopsis: %w", err)
	}
	return &types.Synopsis{
		Character: record.Character,
		Timestamp: record.CreatedAt,
		Text:      record.Text,
		WordCount: record.WordCount,
	}, nil
}
