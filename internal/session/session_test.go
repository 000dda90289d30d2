package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) Count(ctx context.Context, character, role string) (int, error) {
	return f.n, f.err
}

type failingStore struct{}

func (failingStore) MarkShown(ctx context.Context, character, user string) (bool, error) {
	return false, errors.New("disk full")
}

func TestShouldShowIntroOncePerPair(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewMemoryIntroStore(), fakeCounter{}, 5)

	assert.False(t, tracker.ShouldShowIntro(ctx, "Ana", "Léo", false))
	assert.True(t, tracker.ShouldShowIntro(ctx, "Ana", "Léo", true))
	assert.False(t, tracker.ShouldShowIntro(ctx, " ana ", "léo", true))
	assert.False(t, tracker.ShouldShowIntro(ctx, "Ana", "Léo", false))
	assert.True(t, tracker.ShouldShowIntro(ctx, "Ana", "Bia", true))
	assert.True(t, tracker.ShouldShowIntro(ctx, "Jennifer", "Léo", true))
}

func TestShouldShowIntroStoreError(t *testing.T) {
	tracker := NewTracker(failingStore{}, fakeCounter{}, 5)
	assert.False(t, tracker.ShouldShowIntro(context.Background(), "Ana", "Léo", true))
}

func TestLevel(t *testing.T) {
	cases := []struct {
		turns, step, want int
	}{
		{0, 5, 0},
		{4, 5, 0},
		{5, 5, 1},
		{9, 5, 1},
		{10, 5, 2},
		{-1, 5, 0},
		{10, 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Level(tc.turns, tc.step), "turns=%d step=%d", tc.turns, tc.step)
	}
}

func TestLevelMonotonic(t *testing.T) {
	prev := 0
	for turns := 0; turns <= 50; turns++ {
		level := Level(turns, 5)
		require.GreaterOrEqual(t, level, prev)
		require.LessOrEqual(t, level-prev, 1)
		prev = level
	}
}

func TestIntimacyLevel(t *testing.T) {
	tracker := NewTracker(NewMemoryIntroStore(), fakeCounter{n: 12}, 0)
	level, err := tracker.IntimacyLevel(context.Background(), "Ana")
	require.NoError(t, err)
	assert.Equal(t, 2, level)

	tracker = NewTracker(NewMemoryIntroStore(), fakeCounter{err: errors.New("down")}, 5)
	_, err = tracker.IntimacyLevel(context.Background(), "Ana")
	assert.Error(t, err)
}

func TestSQLiteIntroStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flags", "intro.db")

	store, err := NewSQLiteIntroStore(ctx, path)
	require.NoError(t, err)
	first, err := store.MarkShown(ctx, "ana", "léo")
	require.NoError(t, err)
	assert.True(t, first)
	again, err := store.MarkShown(ctx, "ana", "léo")
	require.NoError(t, err)
	assert.False(t, again)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteIntroStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	after, err := reopened.MarkShown(ctx, "ana", "léo")
	require.NoError(t, err)
	assert.False(t, after)
}
