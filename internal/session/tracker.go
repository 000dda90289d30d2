// Package session tracks the per-pair introduction flag and the derived
// intimacy level of a character.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/easeaico/roleplay-relay/internal/types"
)

// DefaultIntimacyStep is the number of user turns per intimacy level.
const DefaultIntimacyStep = 5

// IntroStore remembers which (character, user) pairs have seen the intro.
type IntroStore interface {
	// MarkShown sets the flag and reports whether it was previously unset.
	MarkShown(ctx context.Context, character, user string) (bool, error)
}

// TurnCounter counts log rows of a role for a character.
type TurnCounter interface {
	Count(ctx context.Context, character, role string) (int, error)
}

// Tracker answers the intro and intimacy questions for a chat turn.
type Tracker struct {
	intros IntroStore
	turns  TurnCounter
	step   int
}

// NewTracker creates a Tracker. A non-positive step uses DefaultIntimacyStep.
func NewTracker(intros IntroStore, turns TurnCounter, step int) *Tracker {
	if step <= 0 {
		step = DefaultIntimacyStep
	}
	return &Tracker{intros: intros, turns: turns, step: step}
}

// ShouldShowIntro returns true at most once per (character, user) pair, on
// the first call with isFirst set.
func (t *Tracker) ShouldShowIntro(ctx context.Context, character, user string, isFirst bool) bool {
	if !isFirst {
		return false
	}
	first, err := t.intros.MarkShown(ctx, types.NormalizeName(character), normalizeUser(user))
	if err != nil {
		slog.Warn("failed to record intro flag", "character", character, "error", err)
		return false
	}
	return first
}

// IntimacyLevel derives the level from the character's user turns.
func (t *Tracker) IntimacyLevel(ctx context.Context, character string) (int, error) {
	n, err := t.turns.Count(ctx, character, types.RoleUser)
	if err != nil {
		return 0, fmt.Errorf("failed to count user turns: %w", err)
	}
	return Level(n, t.step), nil
}

// Level is turns integer-divided by step.
func Level(turns, step int) int {
	if turns <= 0 || step <= 0 {
		return 0
	}
	return turns / step
}

func normalizeUser(user string) string {
	return strings.ToLower(strings.TrimSpace(user))
}

type introKey struct {
	character string
	user      string
}

// MemoryIntroStore keeps the flags in process memory; they reset on restart.
type MemoryIntroStore struct {
	mu    sync.Mutex
	shown map[introKey]struct{}
}

// NewMemoryIntroStore returns an empty MemoryIntroStore.
func NewMemoryIntroStore() *MemoryIntroStore {
	return &MemoryIntroStore{shown: make(map[introKey]struct{})}
}

func (s *MemoryIntroStore) MarkShown(ctx context.Context, character, user string) (bool, error) {
	key := introKey{character: character, user: user}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shown[key]; ok {
		return false, nil
	}
	s.shown[key] = struct{}{}
	return true, nil
}
