// Package memory retrieves character memories for prompt assembly.
package memory

import (
	"context"
	"log/slog"

	"github.com/easeaico/roleplay-relay/internal/logutil"
	"github.com/easeaico/roleplay-relay/internal/types"
)

// Outcome tags a Recall so callers can tell an empty store from a failing one.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeEmpty
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Recall is the result of a retrieval.
type Recall struct {
	Items   []string
	Outcome Outcome
	Err     error
}

// OrFallback returns the items, or the fallback text as the only item when
// nothing was recalled.
func (r Recall) OrFallback(fallback string) []string {
	if r.Outcome == OutcomeOK && len(r.Items) > 0 {
		return r.Items
	}
	if fallback == "" {
		return nil
	}
	return []string{fallback}
}

func recallFrom(items []string, err error) Recall {
	if err != nil {
		return Recall{Outcome: OutcomeUnavailable, Err: err}
	}
	if len(items) == 0 {
		return Recall{Outcome: OutcomeEmpty}
	}
	return Recall{Items: items, Outcome: OutcomeOK}
}

// Retriever produces memory lines for a character and the current input.
type Retriever interface {
	Recall(ctx context.Context, character, query string) Recall
}

// MemoryRepo reads flat memory rows.
type MemoryRepo interface {
	ListByCharacter(ctx context.Context, character string) ([]types.MemoryItem, error)
}

// VectorStore is a similarity-search backend scoped by character metadata.
type VectorStore interface {
	Add(ctx context.Context, docs []types.VectorDocument) error
	Query(ctx context.Context, character, text string, topN int) ([]string, error)
	DeleteByCharacter(ctx context.Context, character string) (int, error)
}

func logUnavailable(source, character string, err error) {
	slog.Error("memory retrieval failed", logutil.KeyKind, logutil.KindUpstream,
		"source", source, "character", character, "error", err)
}
