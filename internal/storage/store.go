// Package storage implements the row stores and the embedded vector store
// on PostgreSQL.
package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/easeaico/roleplay-relay/internal/memory"
)

// Store holds the DB handle and repositories.
type Store struct {
	db         *gorm.DB
	Characters *CharacterRepo
	Memories   *MemoryRepo
	Log        *ConversationLog
	Synopses   *SynopsisRepo
}

// NewStore opens the PostgreSQL database and builds the repositories.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newStore(db), nil
}

func newStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		Characters: NewCharacterRepo(db),
		Memories:   NewMemoryRepo(db),
		Log:        NewConversationLog(db),
		Synopses:   NewSynopsisRepo(db),
	}
}

// NewVectorStore returns the pgvector-backed vector store sharing this DB.
func (s *Store) NewVectorStore(embedder memory.Embedder) *VectorRepo {
	return NewVectorRepo(s.db, embedder)
}

// AutoMigrate creates the row tables. The vector table needs the pgvector
// extension and is only migrated when withVectors is set.
func (s *Store) AutoMigrate(ctx context.Context, withVectors bool) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&characterModel{}, &memoryModel{}, &logEntryModel{}, &synopsisModel{}); err != nil {
		return fmt.Errorf("failed to migrate row tables: %w", err)
	}
	if !withVectors {
		return nil
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if err := db.AutoMigrate(&vectorModel{}); err != nil {
		return fmt.Errorf("failed to migrate vector table: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}
