package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/easeaico/roleplay-relay/internal/types"
)

// newTestStore runs the postgres dialect against a SQLite file, which
// accepts the same $N placeholders and RETURNING clause the repos emit.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, ddl := range []string{
		`CREATE TABLE conversation_log (id INTEGER PRIMARY KEY AUTOINCREMENT, personagem TEXT, role TEXT, content TEXT, created_at DATETIME)`,
		`CREATE TABLE synopses (id INTEGER PRIMARY KEY AUTOINCREMENT, personagem TEXT, texto TEXT, palavras INTEGER, created_at DATETIME)`,
	} {
		if _, err := sqlDB.Exec(ddl); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return newStore(db)
}

func appendTurns(t *testing.T, log *ConversationLog, character string, contents ...string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, content := range contents {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		entry := types.LogEntry{
			Character: character,
			Role:      role,
			Content:   content,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := log.Append(context.Background(), entry); err != nil {
			t.Fatalf("append %q: %v", content, err)
		}
	}
}

func TestConversationLogRecentOldestFirst(t *testing.T) {
	store := newTestStore(t)
	appendTurns(t, store.Log, "Ana", "um", "dois", "três", "quatro")
	appendTurns(t, store.Log, "Jennifer", "outra")

	recent, err := store.Log.Recent(context.Background(), " ANA ", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	var got []string
	for _, e := range recent {
		got = append(got, e.Content)
	}
	if len(got) != 3 || got[0] != "dois" || got[1] != "três" || got[2] != "quatro" {
		t.Fatalf("expected last three oldest first, got %v", got)
	}
	if recent[0].Role != types.RoleAssistant || recent[1].Role != types.RoleUser {
		t.Fatalf("roles not preserved: %+v", recent)
	}

	all, err := store.Log.Recent(context.Background(), "Ana", 0)
	if err != nil || len(all) != 4 || all[0].Content != "um" {
		t.Fatalf("expected full log oldest first, got %+v, %v", all, err)
	}
}

func TestConversationLogCountByRole(t *testing.T) {
	store := newTestStore(t)
	appendTurns(t, store.Log, "Ana", "um", "dois", "três")
	appendTurns(t, store.Log, "Jennifer", "outra")
	ctx := context.Background()

	total, err := store.Log.Count(ctx, "Ana", "")
	if err != nil || total != 3 {
		t.Fatalf("expected 3 rows, got %d, %v", total, err)
	}
	users, err := store.Log.Count(ctx, "ana", types.RoleUser)
	if err != nil || users != 2 {
		t.Fatalf("expected 2 user rows, got %d, %v", users, err)
	}
	none, err := store.Log.Count(ctx, "Maria", types.RoleUser)
	if err != nil || none != 0 {
		t.Fatalf("expected 0 rows, got %d, %v", none, err)
	}
}

func TestSynopsisLatestNoneThenNewest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.Synopses.Latest(ctx, "Ana")
	if err != nil || got != nil {
		t.Fatalf("expected no synopsis, got %+v, %v", got, err)
	}

	for i, text := range []string{"Primeira", "Segunda parte"} {
		s := types.Synopsis{
			Character: "Ana",
			Text:      text,
			WordCount: i + 1,
			Timestamp: time.Date(2024, 1, 1+i, 10, 0, 0, 0, time.UTC),
		}
		if err := store.Synopses.Add(ctx, s); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	got, err = store.Synopses.Latest(ctx, " ana")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got == nil || got.Text != "Segunda parte" || got.WordCount != 2 {
		t.Fatalf("unexpected synopsis: %+v", got)
	}
}
