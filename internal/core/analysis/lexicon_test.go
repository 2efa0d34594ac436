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

package analysis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
)

func TestDefaultLexicon(t *testing.T) {
	lex, err := analysis.DefaultLexicon()
	require.NoError(t, err)

	assert.Equal(t, "en", lex.DefaultLanguage)
	assert.Len(t, lex.Languages, 16)
	for code, lists := range lex.Languages {
		assert.NotEmpty(t, lists.Profanity, code)
		assert.NotEmpty(t, lists.Violence, code)
		assert.NotEmpty(t, lists.Adult, code)
	}
	assert.Contains(t, lex.WeaponLabels, "knife")
	assert.Contains(t, lex.NSFWCaptionKeywords, "nude")
}

func TestResolveLanguage(t *testing.T) {
	lex, err := analysis.DefaultLexicon()
	require.NoError(t, err)

	cases := map[string]string{
		"es-ES": "es",
		"zh_CN": "zh",
		"PT-br": "pt",
		"fr":    "fr",
		"auto":  "en",
		"":      "en",
		"xx-YY": "en",
	}
	for tag, want := range cases {
		assert.Equal(t, want, lex.ResolveLanguage(tag), tag)
	}
	assert.True(t, lex.HasLanguage("vi"))
	assert.False(t, lex.HasLanguage("xx"))
}

func TestLoadLexiconOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
languages:
  EN:
    profanity: ["Frak"]
    violence: ["airlock"]
    adult: []
  eo:
    profanity: ["fek"]
    violence: ["mortigi"]
    adult: ["nuda"]
`), 0o644))

	lex, err := analysis.LoadLexicon(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"frak"}, lex.Languages["en"].Profanity)
	assert.Equal(t, "eo", lex.ResolveLanguage("eo"))
	assert.True(t, lex.HasLanguage("es"))
	assert.Contains(t, lex.WeaponLabels, "gun")

	engine := analysis.NewContentModerationEngine(lex, nil)
	report := engine.Moderate("frak the airlock", nil, nil, "en", nil)
	assert.Equal(t, analysis.ProfanityWeight+analysis.ViolenceWeight, report.SeverityScore)
}

func TestLoadLexiconErrors(t *testing.T) {
	_, err := analysis.LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("languages: [unclosed"), 0o644))
	_, err = analysis.LoadLexicon(bad)
	assert.Error(t, err)
}
