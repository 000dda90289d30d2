package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// StyleProfile enumerates the prompt format rules and sampling parameters
// that used to drift between hand-edited copies of the prompt.
type StyleProfile struct {
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`

	MaxParagraphs     int      `toml:"max_paragraphs"`
	ForbiddenDevices  []string `toml:"forbidden_devices"`
	RequiredStructure string   `toml:"required_structure"`
	DefaultMode       string   `toml:"default_mode"`

	SceneDirectionInstruction string `toml:"scene_direction_instruction"`

	SynopsisTemperature float64 `toml:"synopsis_temperature"`
	SynopsisMaxTokens   int     `toml:"synopsis_max_tokens"`
	SynopsisWindow      int     `toml:"synopsis_window"`

	CompletionFallback string   `toml:"completion_fallback"`
	PolicyFallback     string   `toml:"policy_fallback"`
	RefusalPhrases     []string `toml:"refusal_phrases"`
}

// DefaultStyleProfile returns the built-in profile.
func DefaultStyleProfile() StyleProfile {
	return StyleProfile{
		Temperature:   0.88,
		MaxTokens:     750,
		MaxParagraphs: 3,
		ForbiddenDevices: []string{
			"listas ou tópicos",
			"emojis",
			"narrar as falas ou ações do usuário",
			"admitir ser uma inteligência artificial",
		},
		RequiredStructure: "uma fala em primeira pessoa, um pensamento íntimo entre parênteses e uma ação em terceira pessoa",
		DefaultMode:       "romântico",
		SceneDirectionInstruction: "O usuário enviou uma direção de cena entre aspas. " +
			"Descreva o que acontece em frases declarativas simples, em terceira pessoa, sem diálogo.",
		SynopsisTemperature: 0.5,
		SynopsisMaxTokens:   150,
		SynopsisWindow:      5,
		CompletionFallback:  "Desculpe, não consegui responder agora.",
		PolicyFallback:      "*desvia o olhar por um instante* Vamos falar de outra coisa?",
		RefusalPhrases: []string{
			"i can't help with that",
			"i'm sorry, but i can't",
			"as an ai",
			"não posso ajudar com isso",
			"como uma ia",
		},
	}
}

// LoadStyleProfile reads a TOML profile and merges it over the defaults.
// An empty path returns the defaults.
func LoadStyleProfile(path string) (StyleProfile, error) {
	profile := DefaultStyleProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return StyleProfile{}, fmt.Errorf("failed to read style profile '%s': %w", path, err)
	}

	var override StyleProfile
	if err := toml.Unmarshal(data, &override); err != nil {
		return StyleProfile{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return profile.merge(override), nil
}

// WithSampling applies positive overrides from the environment.
func (p StyleProfile) WithSampling(temperature float64, maxTokens int) StyleProfile {
	if temperature > 0 {
		p.Temperature = temperature
	}
	if maxTokens > 0 {
		p.MaxTokens = maxTokens
	}
	return p
}

func (p StyleProfile) merge(o StyleProfile) StyleProfile {
	if o.Temperature > 0 {
		p.Temperature = o.Temperature
	}
	if o.MaxTokens > 0 {
		p.MaxTokens = o.MaxTokens
	}
	if o.MaxParagraphs > 0 {
		p.MaxParagraphs = o.MaxParagraphs
	}
	if o.ForbiddenDevices != nil {
		p.ForbiddenDevices = o.ForbiddenDevices
	}
	if o.RequiredStructure != "" {
		p.RequiredStructure = o.RequiredStructure
	}
	if o.DefaultMode != "" {
		p.DefaultMode = o.DefaultMode
	}
	if o.SceneDirectionInstruction != "" {
		p.SceneDirectionInstruction = o.SceneDirectionInstruction
	}
	if o.SynopsisTemperature > 0 {
		p.SynopsisTemperature = o.SynopsisTemperature
	}
	if o.SynopsisMaxTokens > 0 {
		p.SynopsisMaxTokens = o.SynopsisMaxTokens
	}
	if o.SynopsisWindow > 0 {
		p.SynopsisWindow = o.SynopsisWindow
	}
	if o.CompletionFallback != "" {
		p.CompletionFallback = o.CompletionFallback
	}
	if o.PolicyFallback != "" {
		p.PolicyFallback = o.PolicyFallback
	}
	if o.RefusalPhrases != nil {
		p.RefusalPhrases = o.RefusalPhrases
	}
	return p
}
