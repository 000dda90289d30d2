// Package seed loads characters and memory rows from a YAML file.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/easeaico/roleplay-relay/internal/types"
)

// File is the seed document layout.
type File struct {
	Characters []CharacterSeed `yaml:"personagens"`
}

// CharacterSeed is one character and its memories.
type CharacterSeed struct {
	Name       string            `yaml:"nome"`
	Enabled    *bool             `yaml:"usar"`
	Attributes map[string]string `yaml:"atributos"`
	Memories   []MemorySeed      `yaml:"memorias"`
}

// MemorySeed is one memory row.
type MemorySeed struct {
	Type      string `yaml:"tipo"`
	Emotion   string `yaml:"emocao"`
	Title     string `yaml:"titulo"`
	Date      string `yaml:"data"`
	Relevance string `yaml:"relevancia"`
	Content   string `yaml:"conteudo"`
}

// CharacterWriter upserts characters.
type CharacterWriter interface {
	Upsert(ctx context.Context, c types.Character) error
}

// MemoryWriter appends memory rows.
type MemoryWriter interface {
	Add(ctx context.Context, item types.MemoryItem) error
}

// Result counts what an import wrote.
type Result struct {
	Characters int
	Memories   int
}

// Parse decodes a seed document. Characters default to enabled.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, c := range f.Characters {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("seed character %d has no nome: %w", i, types.ErrValidation)
		}
	}
	return &f, nil
}

// LoadFile reads and parses a seed file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Import writes the seed into the stores.
func Import(ctx context.Context, f *File, chars CharacterWriter, memories MemoryWriter) (Result, error) {
	var res Result
	for _, cs := range f.Characters {
		c := cs.Character()
		if err := chars.Upsert(ctx, c); err != nil {
			return res, err
		}
		res.Characters++

		for _, m := range cs.Memories {
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			if err := memories.Add(ctx, m.Item(c.Name)); err != nil {
				return res, err
			}
			res.Memories++
		}
		slog.Info("seeded character", "character", c.Name, "memories", len(cs.Memories))
	}
	return res, nil
}

// Character converts the seed into a domain character.
func (cs CharacterSeed) Character() types.Character {
	enabled := true
	if cs.Enabled != nil {
		enabled = *cs.Enabled
	}
	attrs := make(map[string]string, len(cs.Attributes))
	for k, v := range cs.Attributes {
		attrs[strings.TrimSpace(k)] = v
	}
	return types.Character{
		Name:       strings.TrimSpace(cs.Name),
		Enabled:    enabled,
		Attributes: attrs,
	}
}

// Item converts the seed into a memory row of character.
func (m MemorySeed) Item(character string) types.MemoryItem {
	return types.MemoryItem{
		Character: character,
		Type:      m.Type,
		Emotion:   m.Emotion,
		Title:     m.Title,
		Date:      m.Date,
		Relevance: m.Relevance,
		Content:   m.Content,
	}
}
