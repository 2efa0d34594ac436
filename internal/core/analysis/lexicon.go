// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package analysis

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var embeddedLexicon []byte

// WordLists are the per-language moderation word sets.
type WordLists struct {
	Profanity []string `yaml:"profanity"`
	Violence  []string `yaml:"violence"`
	Adult     []string `yaml:"adult"`
}

// Lexicon is the full moderation vocabulary.
type Lexicon struct {
	DefaultLanguage     string               `yaml:"default_language"`
	SubstringLanguages  []string             `yaml:"substring_languages"`
	Languages           map[string]WordLists `yaml:"languages"`
	WeaponLabels        []string             `yaml:"weapon_labels"`
	NSFWCaptionKeywords []string             `yaml:"nsfw_caption_keywords"`
}

// DefaultLexicon parses the embedded lexicon.
func DefaultLexicon() (*Lexicon, error) {
	return ParseLexicon(embeddedLexicon)
}

// ParseLexicon decodes a YAML lexicon and lower-cases every entry.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	lex.normalize()
	return &lex, nil
}

// LoadLexicon returns the embedded lexicon, overlaid with the file at path
// when path is not empty. Languages present in the file replace the embedded
// lists for that language; the top-level lists replace the embedded ones when
// they are non-empty.
func LoadLexicon(path string) (*Lexicon, error) {
	base, err := DefaultLexicon()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}
	override, err := ParseLexicon(data)
	if err != nil {
		return nil, err
	}

	if override.DefaultLanguage != "" {
		base.DefaultLanguage = override.DefaultLanguage
	}
	if len(override.SubstringLanguages) > 0 {
		base.SubstringLanguages = override.SubstringLanguages
	}
	for lang, lists := range override.Languages {
		base.Languages[lang] = lists
	}
	if len(override.WeaponLabels) > 0 {
		base.WeaponLabels = override.WeaponLabels
	}
	if len(override.NSFWCaptionKeywords) > 0 {
		base.NSFWCaptionKeywords = override.NSFWCaptionKeywords
	}
	return base, nil
}

func (l *Lexicon) normalize() {
	if l.DefaultLanguage == "" {
		l.DefaultLanguage = "en"
	}
	l.DefaultLanguage = strings.ToLower(l.DefaultLanguage)
	if l.Languages == nil {
		l.Languages = make(map[string]WordLists)
	}
	normalized := make(map[string]WordLists, len(l.Languages))
	for lang, lists := range l.Languages {
		normalized[strings.ToLower(lang)] = WordLists{
			Profanity: lowerAll(lists.Profanity),
			Violence:  lowerAll(lists.Violence),
			Adult:     lowerAll(lists.Adult),
		}
	}
	l.Languages = normalized
	l.SubstringLanguages = lowerAll(l.SubstringLanguages)
	l.WeaponLabels = lowerAll(l.WeaponLabels)
	l.NSFWCaptionKeywords = lowerAll(l.NSFWCaptionKeywords)
}

// ResolveLanguage maps a language tag such as "es-ES" to a lexicon key.
// "auto", empty and unknown languages resolve to the default language.
func (l *Lexicon) ResolveLanguage(tag string) string {
	code := strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	if _, ok := l.Languages[code]; !ok {
		return l.DefaultLanguage
	}
	return code
}

// HasLanguage reports whether code has word lists.
func (l *Lexicon) HasLanguage(code string) bool {
	_, ok := l.Languages[code]
	return ok
}

func (l *Lexicon) matchesBySubstring(code string) bool {
	for _, c := range l.SubstringLanguages {
		if c == code {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
