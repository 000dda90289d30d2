package sheets

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/easeaico/roleplay-relay/internal/character"
	"github.com/easeaico/roleplay-relay/internal/memory"
	"github.com/easeaico/roleplay-relay/internal/roleplay"
	"github.com/easeaico/roleplay-relay/internal/types"
)

// Column names shared by the character and memory tabs.
const (
	colName      = "nome"
	colEnabled   = "usar"
	colCharacter = "personagem"
	colType      = "tipo"
	colEmotion   = "emoção"
	colTitle     = "titulo"
	colTitleAlt  = "título"
	colDate      = "data"
	colRelevance = "relevância"
	colContent   = "conteudo"
)

// CharacterRepo reads the "personagens" tab.
type CharacterRepo struct {
	client *Client
}

var _ character.Repo = (*CharacterRepo)(nil)

func NewCharacterRepo(client *Client) *CharacterRepo {
	return &CharacterRepo{client: client}
}

func (r *CharacterRepo) All(ctx context.Context) ([]types.Character, error) {
	records, err := r.client.records(ctx, tabCharacters)
	if err != nil {
		return nil, err
	}
	results := make([]types.Character, 0, len(records))
	for _, rec := range records {
		name := rec[colName]
		if name == "" {
			continue
		}
		attrs := make(map[string]string, len(rec))
		for k, v := range rec {
			if k == colName || k == colEnabled || v == "" {
				continue
			}
			attrs[k] = v
		}
		results = append(results, types.Character{
			Name:       name,
			Enabled:    types.IsEnabled(rec[colEnabled]),
			Attributes: attrs,
		})
	}
	return results, nil
}

// MemoryRepo reads the "memorias" tab.
type MemoryRepo struct {
	client *Client
}

var _ memory.MemoryRepo = (*MemoryRepo)(nil)

func NewMemoryRepo(client *Client) *MemoryRepo {
	return &MemoryRepo{client: client}
}

func (r *MemoryRepo) ListByCharacter(ctx context.Context, character string) ([]types.MemoryItem, error) {
	records, err := r.client.records(ctx, tabMemories)
	if err != nil {
		return nil, err
	}
	want := types.NormalizeName(character)
	var results []types.MemoryItem
	for _, rec := range records {
		if types.NormalizeName(rec[colCharacter]) != want {
			continue
		}
		title := rec[colTitle]
		if title == "" {
			title = rec[colTitleAlt]
		}
		results = append(results, types.MemoryItem{
			Character: rec[colCharacter],
			Type:      rec[colType],
			Emotion:   rec[colEmotion],
			Title:     title,
			Date:      rec[colDate],
			Relevance: rec[colRelevance],
			Content:   rec[colContent],
		})
	}
	return results, nil
}

// ConversationLog keeps one tab per character with rows of
// (timestamp, role, content).
type ConversationLog struct {
	client *Client
}

var _ roleplay.ConversationLog = (*ConversationLog)(nil)

func NewConversationLog(client *Client) *ConversationLog {
	return &ConversationLog{client: client}
}

func (l *ConversationLog) Append(ctx context.Context, entry types.LogEntry) error {
	tab := strings.TrimSpace(entry.Character)
	if tab == "" {
		return types.ErrValidation
	}
	return l.client.appendRow(ctx, tab, entry.Timestamp.Format(types.LogTimeLayout), entry.Role, entry.Content)
}

func (l *ConversationLog) Recent(ctx context.Context, character string, limit int) ([]types.LogEntry, error) {
	entries, err := l.all(ctx, character)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (l *ConversationLog) Count(ctx context.Context, character, role string) (int, error) {
	entries, err := l.all(ctx, character)
	if err != nil {
		return 0, err
	}
	if role == "" {
		return len(entries), nil
	}
	n := 0
	for _, e := range entries {
		if e.Role == role {
			n++
		}
	}
	return n, nil
}

func (l *ConversationLog) all(ctx context.Context, character string) ([]types.LogEntry, error) {
	rows, err := l.client.values(ctx, strings.TrimSpace(character))
	if err != nil {
		return nil, err
	}
	return parseLogRows(character, rows), nil
}

// parseLogRows skips header or malformed rows; only rows whose second
// column is a known role are entries.
func parseLogRows(character string, rows [][]string) []types.LogEntry {
	entries := make([]types.LogEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		role := strings.ToLower(row[1])
		switch role {
		case types.RoleUser, types.RoleAssistant, types.RoleSystem:
		default:
			continue
		}
		ts, _ := time.ParseInLocation(types.LogTimeLayout, row[0], time.Local)
		entries = append(entries, types.LogEntry{
			Character: character,
			Timestamp: ts,
			Role:      role,
			Content:   row[2],
		})
	}
	return entries
}

// SynopsisRepo keeps recaps in "<nome>_sinopse" tabs with rows of
// (timestamp, text, word count).
type SynopsisRepo struct {
	client *Client
}

var _ roleplay.SynopsisRepo = (*SynopsisRepo)(nil)

func NewSynopsisRepo(client *Client) *SynopsisRepo {
	return &SynopsisRepo{client: client}
}

func (r *SynopsisRepo) Add(ctx context.Context, s types.Synopsis) error {
	tab := strings.TrimSpace(s.Character) + synopsisSuffix
	return r.client.appendRow(ctx, tab, s.Timestamp.Format(types.LogTimeLayout), s.Text, s.WordCount)
}

func (r *SynopsisRepo) Latest(ctx context.Context, character string) (*types.Synopsis, error) {
	rows, err := r.client.values(ctx, strings.TrimSpace(character)+synopsisSuffix)
	if errors.Is(err, errMissingTab) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 2 || row[1] == "" {
			continue
		}
		ts, err := time.ParseInLocation(types.LogTimeLayout, row[0], time.Local)
		if err != nil {
			// header row
			continue
		}
		s := &types.Synopsis{Character: character, Timestamp: ts, Text: row[1]}
		if len(row) > 2 {
			s.WordCount, _ = strconv.Atoi(row[2])
		}
		return s, nil
	}
	return nil, nil
}
