// Package character resolves personas from the row store.
package character

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/easeaico/roleplay-relay/internal/logutil"
	"github.com/easeaico/roleplay-relay/internal/types"
)

// Repo reads every character row in store order.
type Repo interface {
	All(ctx context.Context) ([]types.Character, error)
}

// Catalog applies name matching and the enabled flag over a Repo.
type Catalog struct {
	repo          Repo
	serveDisabled bool
}

// NewCatalog returns a Catalog. When serveDisabled is set, a direct lookup
// falls back to a disabled row with a warning; listing never does.
func NewCatalog(repo Repo, serveDisabled bool) *Catalog {
	return &Catalog{repo: repo, serveDisabled: serveDisabled}
}

// Get returns the first enabled character matching name. Errors wrap
// types.ErrNotFound or types.ErrStoreUnavailable.
func (c *Catalog) Get(ctx context.Context, name string) (*types.Character, error) {
	if types.NormalizeName(name) == "" {
		return nil, fmt.Errorf("character name is empty: %w", types.ErrValidation)
	}

	rows, err := c.repo.All(ctx)
	if err != nil {
		return nil, unavailable(err)
	}

	var disabled *types.Character
	for i := range rows {
		row := rows[i]
		if !row.MatchesName(name) {
			continue
		}
		if row.Enabled {
			return &row, nil
		}
		if disabled == nil {
			disabled = &row
		}
	}

	if disabled != nil && c.serveDisabled {
		slog.Warn("serving disabled character", "character", disabled.Name)
		return disabled, nil
	}
	return nil, fmt.Errorf("character %q: %w", name, types.ErrNotFound)
}

// List returns the enabled characters in store order.
func (c *Catalog) List(ctx context.Context) ([]types.Character, error) {
	rows, err := c.repo.All(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	results := make([]types.Character, 0, len(rows))
	for _, row := range rows {
		if row.Enabled {
			results = append(results, row)
		}
	}
	return results, nil
}

func unavailable(err error) error {
	if errors.Is(err, types.ErrStoreUnavailable) {
		return err
	}
	slog.Error("failed to read characters", logutil.KeyKind, logutil.KindUpstream, "error", err)
	return fmt.Errorf("failed to read characters: %w: %w", types.ErrStoreUnavailable, err)
}
