package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/easeaico/roleplay-relay/internal/types"
)

// dateLayouts are the formats seen in the "data" column.
var dateLayouts = []string{
	"02/01/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-01-2006",
	"01/2006",
	"2006",
}

// ParseDate parses a loosely formatted memory date.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortByDate orders items newest first. Items whose date cannot be parsed
// keep their store order after every dated item.
func SortByDate(items []types.MemoryItem) {
	type keyed struct {
		at time.Time
		ok bool
	}
	keys := make([]keyed, len(items))
	for i := range items {
		keys[i].at, keys[i].ok = ParseDate(items[i].Date)
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.ok != kb.ok {
			return ka.ok
		}
		if !ka.ok {
			return false
		}
		return ka.at.After(kb.at)
	})

	sorted := make([]types.MemoryItem, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

// FormatItem renders one memory as a display line. Empty fields are skipped.
func FormatItem(item types.MemoryItem) string {
	var sb strings.Builder
	if t := strings.TrimSpace(item.Type); t != "" {
		fmt.Fprintf(&sb, "[%s] ", t)
	}
	if e := strings.TrimSpace(item.Emotion); e != "" {
		fmt.Fprintf(&sb, "(%s) ", e)
	}
	if title := strings.TrimSpace(item.Title); title != "" {
		sb.WriteString(title)
		if d := strings.TrimSpace(item.Date); d != "" {
			fmt.Fprintf(&sb, " - %s", d)
		}
		sb.WriteString(": ")
	} else if d := strings.TrimSpace(item.Date); d != "" {
		fmt.Fprintf(&sb, "%s: ", d)
	}
	sb.WriteString(strings.TrimSpace(item.Content))
	if r := strings.TrimSpace(item.Relevance); r != "" {
		fmt.Fprintf(&sb, " [relevância: %s]", r)
	}
	return strings.TrimSpace(sb.String())
}

// FlatRetriever lists every memory row of the character, newest first.
type FlatRetriever struct {
	repo MemoryRepo
}

// NewFlatRetriever creates a FlatRetriever.
func NewFlatRetriever(repo MemoryRepo) *FlatRetriever {
	return &FlatRetriever{repo: repo}
}

// List returns the character's memories sorted by date.
func (r *FlatRetriever) List(ctx context.Context, character string) ([]types.MemoryItem, error) {
	items, err := r.repo.ListByCharacter(ctx, character)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	scoped := items[:0:0]
	for _, item := range items {
		if types.NormalizeName(item.Character) == types.NormalizeName(character) {
			scoped = append(scoped, item)
		}
	}
	SortByDate(scoped)
	return scoped, nil
}

// Recall ignores the query; flat mode always returns every memory.
func (r *FlatRetriever) Recall(ctx context.Context, character, query string) Recall {
	items, err := r.List(ctx, character)
	if err != nil {
		logUnavailable("rows", character, err)
		return recallFrom(nil, err)
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if line := FormatItem(item); line != "" {
			lines = append(lines, line)
		}
	}
	return recallFrom(lines, nil)
}
