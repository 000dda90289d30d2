// Package completion sends assembled messages to the chat model and screens
// the replies.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/roleplay-relay/internal/config"
	"github.com/easeaico/roleplay-relay/internal/logutil"
	"github.com/easeaico/roleplay-relay/internal/types"
	"github.com/easeaico/roleplay-relay/internal/utils"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// PolicyCheck reports whether a reply should be replaced by the policy fallback.
type PolicyCheck func(reply string) bool

// RefusalPhrases returns a PolicyCheck matching any phrase, case-insensitively.
func RefusalPhrases(phrases []string) PolicyCheck {
	folded := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			folded = append(folded, p)
		}
	}
	return func(reply string) bool {
		lower := strings.ToLower(reply)
		for _, p := range folded {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
}

// Params are the sampling parameters of one request.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Client calls the chat model.
type Client struct {
	model  model.LLM
	style  config.StyleProfile
	policy PolicyCheck
}

// NewClient creates a Client. A nil policy disables screening.
func NewClient(m model.LLM, style config.StyleProfile, policy PolicyCheck) *Client {
	return &Client{model: m, style: style, policy: policy}
}

// ChatParams returns the sampling parameters for character replies.
func (c *Client) ChatParams() Params {
	return Params{Temperature: c.style.Temperature, MaxTokens: c.style.MaxTokens}
}

// SynopsisParams returns the sampling parameters for synopsis generation.
func (c *Client) SynopsisParams() Params {
	return Params{Temperature: c.style.SynopsisTemperature, MaxTokens: c.style.SynopsisMaxTokens}
}

// Generate returns the trimmed reply text.
func (c *Client) Generate(ctx context.Context, messages []types.Message, params Params) (string, error) {
	if c == nil || c.model == nil {
		return "", fmt.Errorf("completion client not configured")
	}
	req := &model.LLMRequest{
		Contents: toContents(messages),
		Config:   &genai.GenerateContentConfig{},
	}
	if params.Temperature > 0 {
		temp := float32(params.Temperature)
		req.Config.Temperature = &temp
	}
	if params.MaxTokens > 0 {
		req.Config.MaxOutputTokens = int32(params.MaxTokens)
	}

	seq := c.model.GenerateContent(ctx, req, false)
	var resp *model.LLMResponse
	var err error
	seq(func(r *model.LLMResponse, e error) bool {
		resp = r
		err = e
		return false
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ErrEmptyReply
	}
	text := strings.TrimSpace(utils.ExtractContentText(resp.Content))
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// Reply generates a character reply. Upstream failures degrade to the
// completion fallback and policy hits to the policy fallback; neither is
// returned as an error.
func (c *Client) Reply(ctx context.Context, character string, messages []types.Message) string {
	text, err := c.Generate(ctx, messages, c.ChatParams())
	if err != nil {
		slog.Error("completion failed", "character", character, logutil.KeyKind, logutil.KindUpstream, "error", err)
		return c.style.CompletionFallback
	}
	if c.policy != nil && c.policy(text) {
		slog.Warn("reply replaced by policy fallback", "character", character, logutil.KeyKind, logutil.KindPolicyTriggered)
		return c.style.PolicyFallback
	}
	return text
}

func toContents(messages []types.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if role == types.RoleAssistant {
			role = "model"
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.Role(role)))
	}
	return contents
}
