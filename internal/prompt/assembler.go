// Package prompt assembles chat-completion messages for a character.
package prompt

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/easeaico/roleplay-relay/internal/config"
	"github.com/easeaico/roleplay-relay/internal/types"
	"github.com/easeaico/roleplay-relay/internal/utils"
)

// defaultUserName addresses the counterpart when neither the request nor
// the character names one.
const defaultUserName = "usuário"

// Quoted input may span lines.
var sceneDirectionPattern = regexp.MustCompile(`(?s)^".*"$`)

// IsSceneDirection reports whether input, once trimmed, is fully quoted.
func IsSceneDirection(input string) bool {
	return sceneDirectionPattern.MatchString(strings.TrimSpace(input))
}

// Input contains everything that goes into one completion request.
type Input struct {
	Character     *types.Character
	UserName      string
	Mode          string
	IntimacyLevel int
	Memories      []string
	History       []types.LogEntry
	Synopsis      string
	UserInput     string
}

// Assembler builds message lists under a StyleProfile.
type Assembler struct {
	style config.StyleProfile
}

// NewAssembler creates an Assembler.
func NewAssembler(style config.StyleProfile) *Assembler {
	return &Assembler{style: style}
}

// Build returns the system message, the recent history and the user
// message, in that order.
func (a *Assembler) Build(in Input) ([]types.Message, error) {
	if in.Character == nil {
		return nil, fmt.Errorf("character is required")
	}

	userName := strings.TrimSpace(in.UserName)
	if userName == "" {
		userName = in.Character.CounterpartName()
	}
	if userName == "" {
		userName = defaultUserName
	}

	var (
		system string
		user   = strings.TrimSpace(in.UserInput)
		err    error
	)
	if IsSceneDirection(in.UserInput) {
		direction := strings.TrimSpace(user[1 : len(user)-1])
		system, err = a.sceneSystem(in.Character.Name, direction)
		user = direction
	} else {
		system, err = a.personaSystem(in, userName)
	}
	if err != nil {
		return nil, err
	}

	messages := make([]types.Message, 0, len(in.History)+2)
	messages = append(messages, types.Message{Role: types.RoleSystem, Content: system})
	for _, entry := range in.History {
		switch entry.Role {
		case types.RoleUser, types.RoleAssistant:
			messages = append(messages, types.Message{Role: entry.Role, Content: entry.Content})
		}
	}
	messages = append(messages, types.Message{Role: types.RoleUser, Content: user})
	return messages, nil
}

func (a *Assembler) personaSystem(in Input, userName string) (string, error) {
	c := in.Character
	attr := func(key string) string {
		return utils.NormalizePromptText(c.Attr(key), c.Name, userName)
	}

	memories := make([]string, 0, len(in.Memories))
	for _, m := range in.Memories {
		if m = strings.TrimSpace(m); m != "" {
			memories = append(memories, utils.NormalizePromptText(m, c.Name, userName))
		}
	}

	data := struct {
		Name          string
		Age           string
		Relationship  string
		UserName      string
		Mode          string
		Intimacy      int
		Description   string
		Physical      string
		Speech        string
		Emotional     string
		PromptBase    string
		Context       string
		Introduction  string
		Positive      string
		Negative      string
		ExNarration   string
		ExDialogue    string
		ExThought     string
		Synopsis      string
		Memories      []string
		MaxParagraphs int
		Structure     string
		Forbidden     []string
	}{
		Name:          strings.TrimSpace(c.Name),
		Age:           attr(types.AttrAge),
		Relationship:  attr(types.AttrRelationship),
		UserName:      userName,
		Mode:          strings.TrimSpace(in.Mode),
		Intimacy:      in.IntimacyLevel,
		Description:   attr(types.AttrShortDescription),
		Physical:      attr(types.AttrPhysicalTraits),
		Speech:        attr(types.AttrSpeechStyle),
		Emotional:     attr(types.AttrEmotionalState),
		PromptBase:    attr(types.AttrPromptBase),
		Context:       attr(types.AttrContext),
		Introduction:  attr(types.AttrIntroduction),
		Positive:      attr(types.AttrPositiveRules),
		Negative:      attr(types.AttrNegativeRules),
		ExNarration:   attr(types.AttrExampleNarration),
		ExDialogue:    attr(types.AttrExampleDialogue),
		ExThought:     attr(types.AttrExampleThought),
		Synopsis:      strings.TrimSpace(in.Synopsis),
		Memories:      memories,
		MaxParagraphs: a.style.MaxParagraphs,
		Structure:     strings.TrimSpace(a.style.RequiredStructure),
		Forbidden:     a.style.ForbiddenDevices,
	}

	var buf bytes.Buffer
	if err := personaTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return buf.String(), nil
}

func (a *Assembler) sceneSystem(name, direction string) (string, error) {
	data := struct {
		Instruction string
		Direction   string
		Name        string
	}{
		Instruction: a.style.SceneDirectionInstruction,
		Direction:   direction,
		Name:        strings.TrimSpace(name),
	}

	var buf bytes.Buffer
	if err := sceneTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build scene prompt: %w", err)
	}
	return buf.String(), nil
}

// BuildSynopsis returns the single user message asking for a recap of
// entries.
func BuildSynopsis(entries []types.LogEntry) ([]types.Message, error) {
	var buf bytes.Buffer
	if err := synopsisTemplate.Execute(&buf, entries); err != nil {
		return nil, fmt.Errorf("failed to build synopsis prompt: %w", err)
	}
	return []types.Message{{Role: types.RoleUser, Content: buf.String()}}, nil
}
