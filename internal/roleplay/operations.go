package roleplay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/easeaico/roleplay-relay/internal/logutil"
	"github.com/easeaico/roleplay-relay/internal/types"
)

// Card is the display shape of a listed character.
type Card struct {
	Name      string `json:"nome"`
	Desc      string `json:"descricao"`
	Age       string `json:"idade"`
	Style     string `json:"estilo"`
	Emotional string `json:"estado_emocional"`
	Photo     string `json:"foto"`
}

// Characters lists the enabled characters.
func (s *Service) Characters(ctx context.Context) ([]Card, error) {
	chars, err := s.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(chars))
	for i := range chars {
		c := &chars[i]
		name := strings.TrimSpace(c.Name)
		cards = append(cards, Card{
			Name:      c.Name,
			Desc:      c.Attr(types.AttrShortDescription),
			Age:       c.Attr(types.AttrAge),
			Style:     c.Attr(types.AttrSpeechStyle),
			Emotional: c.Attr(types.AttrEmotionalState),
			Photo:     s.opts.ImageBaseURL + name + ".jpg",
		})
	}
	return cards, nil
}

// IntroResult carries either the latest synopsis or the static intro.
type IntroResult struct {
	Summary string `json:"resumo,omitempty"`
	Intro   string `json:"intro,omitempty"`
}

// Intro returns the latest synopsis, or the introduction when none exists.
func (s *Service) Intro(ctx context.Context, name string) (*IntroResult, error) {
	c, err := s.Catalog.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	latest, err := s.Synopses.Latest(ctx, c.Name)
	if err != nil {
		slog.Warn("failed to load synopsis", "character", c.Name, logutil.KeyKind, logutil.KindUpstream, "error", err)
	}
	if latest != nil && strings.TrimSpace(latest.Text) != "" {
		return &IntroResult{Summary: latest.Text}, nil
	}
	return &IntroResult{Intro: c.Introduction()}, nil
}

// Messages returns the raw log of a character, oldest first.
func (s *Service) Messages(ctx context.Context, name string, limit int) ([]types.LogEntry, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("personagem is required: %w", types.ErrValidation)
	}
	entries, err := s.Log.Recent(ctx, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w: %w", types.ErrStoreUnavailable, err)
	}
	return entries, nil
}

// InitialMemory stores the character's introduction as its first vector
// document.
func (s *Service) InitialMemory(ctx context.Context, name string) error {
	c, err := s.Catalog.Get(ctx, name)
	if err != nil {
		return err
	}
	return s.Admin.Initial(ctx, c)
}

// SeedMemories copies the flat memory rows into the vector backend.
func (s *Service) SeedMemories(ctx context.Context, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("personagem is required: %w", types.ErrValidation)
	}
	return s.Admin.Seed(ctx, name)
}

// ClearMemories deletes the character's vector documents.
func (s *Service) ClearMemories(ctx context.Context, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("personagem is required: %w", types.ErrValidation)
	}
	return s.Admin.Clear(ctx, name)
}
