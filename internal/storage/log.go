package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/roleplay-relay/internal/roleplay"
	"github.com/easeaico/roleplay-relay/internal/types"
)

// logEntryModel maps to the conversation_log table.
type logEntryModel struct {
	ID        int
	Character string `gorm:"column:personagem;index"`
	Role      string
	Content   string
	CreatedAt time.Time
}

func (logEntryModel) TableName() string {
	return "conversation_log"
}

// ConversationLog is the append-only per-character log.
type ConversationLog struct {
	db *gorm.DB
}

var _ roleplay.ConversationLog = (*ConversationLog)(nil)

// NewConversationLog returns a ConversationLog.
func NewConversationLog(db *gorm.DB) *ConversationLog {
	return &ConversationLog{db: db}
}

func (l *ConversationLog) Append(ctx context.Context, entry types.LogEntry) error {
	character := types.NormalizeName(entry.Character)
	if character == "" {
		return fmt.Errorf("log entry has no character: %w", types.ErrValidation)
	}
	record := logEntryModel{
		Character: character,
		Role:      entry.Role,
		Content:   entry.Content,
		CreatedAt: entry.Timestamp,
	}
	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

func (l *ConversationLog) Recent(ctx context.Context, character string, limit int) ([]types.LogEntry, error) {
	query := l.db.WithContext(ctx).
		Where("personagem = ?", types.NormalizeName(character)).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []logEntryModel
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query conversation log: %w", err)
	}

	results := make([]types.LogEntry, 0, len(records))
	for _, record := range records {
		results = append(results, logEntryFromModel(record))
	}

	// Oldest -> newest
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

func (l *ConversationLog) Count(ctx context.Context, character, role string) (int, error) {
	query := l.db.WithContext(ctx).
		Model(&logEntryModel{}).
		Where("personagem = ?", types.NormalizeName(character))
	if role = strings.TrimSpace(role); role != "" {
		query = query.Where("role = ?", role)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count log entries: %w", err)
	}
	return int(count), nil
}

func logEntryFromModel(model logEntryModel) types.LogEntry {
	return types.LogEntry{
		Character: model.Character,
		Timestamp: model.CreatedAt,
		Role:      model.Role,
		Content:   model.Content,
	}
}
