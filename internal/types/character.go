package types

import (
	"strings"
	"time"
)

// Attribute keys used by character rows. They match the column headers of
// the "personagens" sheet so both row stores share one vocabulary.
const (
	AttrAge              = "idade"
	AttrShortDescription = "descrição curta"
	AttrPhysicalTraits   = "traços físicos"
	AttrSpeechStyle      = "estilo fala"
	AttrEmotionalState   = "estado_emocional"
	AttrPromptBase       = "prompt_base"
	AttrPositiveRules    = "diretrizes_positivas"
	AttrNegativeRules    = "diretrizes_negativas"
	AttrExampleNarration = "exemplo_narrador"
	AttrExampleDialogue  = "exemplo_fala"
	AttrExampleThought   = "exemplo_pensamento"
	AttrRelationship     = "relacionamento"
	AttrUserName         = "user_name"
	AttrContext          = "contexto"
	AttrIntroduction     = "introducao"
)

// EnabledSentinel is the affirmative value of the "usar" column.
const EnabledSentinel = "sim"

// Character is a configured persona. Attributes is a flat column -> value
// mapping; only non-empty values are kept.
type Character struct {
	Name       string            `json:"nome"`
	Enabled    bool              `json:"usar"`
	Attributes map[string]string `json:"atributos"`
}

// Attr returns the trimmed attribute value, or "" when absent.
func (c *Character) Attr(key string) string {
	if c == nil || c.Attributes == nil {
		return ""
	}
	return strings.TrimSpace(c.Attributes[key])
}

// Introduction returns the static introduction text, falling back to the
// free-text context when no introduction is configured.
func (c *Character) Introduction() string {
	if intro := c.Attr(AttrIntroduction); intro != "" {
		return intro
	}
	return c.Attr(AttrContext)
}

// CounterpartName is the user name the character addresses.
func (c *Character) CounterpartName() string {
	return c.Attr(AttrUserName)
}

// NormalizeName folds a character name for comparisons.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MatchesName reports whether the character is addressed by name.
func (c *Character) MatchesName(name string) bool {
	return c != nil && NormalizeName(c.Name) == NormalizeName(name)
}

// IsEnabled reports whether a raw "usar" cell holds the affirmative sentinel.
func IsEnabled(raw string) bool {
	return NormalizeName(raw) == EnabledSentinel
}

// MemoryItem is a stored fact or event belonging to one character.
type MemoryItem struct {
	ID        int    `json:"id,omitempty"`
	Character string `json:"personagem"`
	Type      string `json:"tipo"`
	Emotion   string `json:"emoção"`
	Title     string `json:"titulo"`
	Date      string `json:"data"`
	Relevance string `json:"relevância"`
	Content   string `json:"conteudo"`
}

// Log roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// LogTimeLayout is the timestamp format written to log rows.
const LogTimeLayout = "2006-01-02 15:04:05"

// LogEntry is one conversation turn.
type LogEntry struct {
	Character string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

// Synopsis is a generated recap of recent turns.
type Synopsis struct {
	Character string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"texto"`
	WordCount int       `json:"palavras"`
}

// Message is one chat-completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// VectorDocument is a document held by a vector-search backend.
type VectorDocument struct {
	ID        string
	Character string
	Content   string
	Metadata  map[string]string
}
