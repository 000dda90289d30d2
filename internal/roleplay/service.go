// Package roleplay runs a chat turn end to end: character lookup, memory
// recall, prompt assembly, completion and logging.
package roleplay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/easeaico/roleplay-relay/internal/character"
	"github.com/easeaico/roleplay-relay/internal/completion"
	"github.com/easeaico/roleplay-relay/internal/logutil"
	"github.com/easeaico/roleplay-relay/internal/memory"
	"github.com/easeaico/roleplay-relay/internal/prompt"
	"github.com/easeaico/roleplay-relay/internal/session"
	"github.com/easeaico/roleplay-relay/internal/types"
)

const defaultUserKey = "usuário"

// ConversationLog is the append-only per-character turn log.
type ConversationLog interface {
	Append(ctx context.Context, entry types.LogEntry) error
	// Recent returns at most limit entries, oldest first.
	Recent(ctx context.Context, character string, limit int) ([]types.LogEntry, error)
	// Count counts entries of role, or all entries when role is empty.
	Count(ctx context.Context, character, role string) (int, error)
}

// SynopsisRepo stores generated synopses.
type SynopsisRepo interface {
	Add(ctx context.Context, s types.Synopsis) error
	// Latest returns nil when the character has no synopsis.
	Latest(ctx context.Context, character string) (*types.Synopsis, error)
}

// Completer produces model replies.
type Completer interface {
	Reply(ctx context.Context, character string, messages []types.Message) string
	Generate(ctx context.Context, messages []types.Message, params completion.Params) (string, error)
	SynopsisParams() completion.Params
}

// Options tunes the service.
type Options struct {
	HistoryLimit   int
	SynopsisEvery  int
	SynopsisWindow int
	DefaultMode    string
	ImageBaseURL   string
}

// Deps are the collaborators of a Service.
type Deps struct {
	Catalog   *character.Catalog
	Retriever memory.Retriever
	Admin     *memory.Admin
	Log       ConversationLog
	Synopses  SynopsisRepo
	Assembler *prompt.Assembler
	Completer Completer
	Tracker   *session.Tracker
}

// Service implements the relay operations.
type Service struct {
	Deps
	opts Options
	now  func() time.Time
}

// NewService creates a Service.
func NewService(deps Deps, opts Options) *Service {
	if opts.SynopsisWindow <= 0 {
		opts.SynopsisWindow = 5
	}
	return &Service{Deps: deps, opts: opts, now: time.Now}
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Character        string `json:"personagem"`
	UserInput        string `json:"user_input"`
	Mode             string `json:"modo,omitempty"`
	FirstInteraction bool   `json:"primeira_interacao,omitempty"`
	UserName         string `json:"usuario,omitempty"`
}

// ChatResponse is the reply to a ChatRequest.
type ChatResponse struct {
	Response      string `json:"response"`
	Mode          string `json:"modo"`
	Synopsis      string `json:"sinopse,omitempty"`
	Introduction  string `json:"introducao,omitempty"`
	IntimacyLevel int    `json:"nivel_intimidade"`
}

// Chat handles one turn. Only validation and character lookup failures are
// returned; everything after degrades and is logged.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	input := strings.TrimSpace(req.UserInput)
	if strings.TrimSpace(req.Character) == "" || input == "" {
		return nil, fmt.Errorf("personagem and user_input are required: %w", types.ErrValidation)
	}

	c, err := s.Catalog.Get(ctx, req.Character)
	if err != nil {
		return nil, err
	}

	mode := strings.TrimSpace(req.Mode)
	if mode == "" {
		mode = s.opts.DefaultMode
	}

	recall := s.Retriever.Recall(ctx, c.Name, input)
	memories := recall.OrFallback(c.Introduction())

	history, err := s.Log.Recent(ctx, c.Name, s.opts.HistoryLimit)
	if err != nil {
		slog.Warn("failed to load history", "character", c.Name, logutil.KeyKind, logutil.KindUpstream, "error", err)
		history = nil
	}

	var synopsis string
	if latest, err := s.Synopses.Latest(ctx, c.Name); err != nil {
		slog.Warn("failed to load synopsis", "character", c.Name, logutil.KeyKind, logutil.KindUpstream, "error", err)
	} else if latest != nil {
		synopsis = latest.Text
	}

	level, err := s.Tracker.IntimacyLevel(ctx, c.Name)
	if err != nil {
		slog.Warn("failed to derive intimacy level", "character", c.Name, logutil.KeyKind, logutil.KindUpstream, "error", err)
	}

	messages, err := s.Assembler.Build(prompt.Input{
		Character:     c,
		UserName:      req.UserName,
		Mode:          mode,
		IntimacyLevel: level,
		Memories:      memories,
		History:       history,
		Synopsis:      synopsis,
		UserInput:     input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assemble prompt: %w", err)
	}

	reply := s.Completer.Reply(ctx, c.Name, messages)

	s.appendTurn(ctx, c.Name, types.RoleUser, input)
	s.appendTurn(ctx, c.Name, types.RoleAssistant, reply)

	resp := &ChatResponse{
		Response:      reply,
		Mode:          mode,
		Synopsis:      s.maybeSynopsis(ctx, c.Name),
		IntimacyLevel: level,
	}
	if s.Tracker.ShouldShowIntro(ctx, c.Name, userKey(req.UserName, c), req.FirstInteraction) {
		resp.Introduction = c.Introduction()
	}
	return resp, nil
}

func (s *Service) appendTurn(ctx context.Context, character, role, content string) {
	err := s.Log.Append(ctx, types.LogEntry{
		Character: character,
		Timestamp: s.now(),
		Role:      role,
		Content:   content,
	})
	if err != nil {
		slog.Error("failed to append log entry", "character", character, "role", role, logutil.KeyKind, logutil.KindUpstream, "error", err)
	}
}

// maybeSynopsis generates and stores a synopsis when the log length is a
// multiple of SynopsisEvery. It returns the new text or "".
func (s *Service) maybeSynopsis(ctx context.Context, character string) string {
	if s.opts.SynopsisEvery <= 0 {
		return ""
	}
	n, err := s.Log.Count(ctx, character, "")
	if err != nil {
		slog.Warn("failed to count log entries", "character", character, logutil.KeyKind, logutil.KindUpstream, "error", err)
		return ""
	}
	if n == 0 || n%s.opts.SynopsisEvery != 0 {
		return ""
	}

	entries, err := s.Log.Recent(ctx, character, s.opts.SynopsisWindow)
	if err != nil {
		slog.Warn("failed to load synopsis window", "character", character, logutil.KeyKind, logutil.KindUpstream, "error", err)
		return ""
	}
	messages, err := prompt.BuildSynopsis(entries)
	if err != nil {
		slog.Error("failed to build synopsis prompt", "character", character, "error", err)
		return ""
	}
	text, err := s.Completer.Generate(ctx, messages, s.Completer.SynopsisParams())
	if err != nil {
		slog.Warn("failed to generate synopsis", "character", character, logutil.KeyKind, logutil.KindUpstream, "error", err)
		return ""
	}

	err = s.Synopses.Add(ctx, types.Synopsis{
		Character: character,
		Timestamp: s.now(),
		Text:      text,
		WordCount: len(strings.Fields(text)),
	})
	if err != nil {
		slog.Warn("failed to store synopsis", "character", character, logutil.KeyKind, logutil.KindUpstream, "error", err)
	}
	return text
}

func userKey(requested string, c *types.Character) string {
	if u := strings.TrimSpace(requested); u != "" {
		return u
	}
	if u := c.CounterpartName(); u != "" {
		return u
	}
	return defaultUserKey
}
