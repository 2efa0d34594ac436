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

package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/services"
	test "github.com/jaycherian/gcp-go-video-insight/internal/testutil"
)

func TestAutoLanguageExplicitLanguage(t *testing.T) {
	var seen []string
	backend := services.TranscriberFunc(func(_ context.Context, _ string, lang string) (model.Transcript, error) {
		seen = append(seen, lang)
		return model.Transcript{Text: "Hola a todos."}, nil
	})

	tr, err := services.NewAutoLanguage(backend, nil, nil).Transcribe(context.Background(), "a.wav", "es-ES")
	require.NoError(t, err)
	assert.Equal(t, []string{"es-ES"}, seen)
	assert.Equal(t, "es-ES", tr.DetectedLanguage)
	assert.Equal(t, 0.85, tr.Confidence)
	assert.Equal(t, model.TranscriptSuccess, tr.Status)
	assert.NotNil(t, tr.Segments)
}

func TestAutoLanguageUsesReportedLanguage(t *testing.T) {
	calls := 0
	backend := services.TranscriberFunc(func(_ context.Context, _ string, lang string) (model.Transcript, error) {
		calls++
		assert.Empty(t, lang)
		return model.Transcript{Text: "Bonjour tout le monde.", DetectedLanguage: "fr-FR"}, nil
	})

	tr, err := services.NewAutoLanguage(backend, nil, nil).Transcribe(context.Background(), "a.wav", "auto")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "fr-FR", tr.DetectedLanguage)
}

func TestAutoLanguageSweepKeepsLongestTranscript(t *testing.T) {
	var seen []string
	backend := services.TranscriberFunc(func(_ context.Context, _ string, lang string) (model.Transcript, error) {
		seen = append(seen, lang)
		switch lang {
		case "":
			return model.Transcript{Text: "garbled"}, nil
		case "de-DE":
			return model.Transcript{Text: "Guten Morgen, wie geht es Ihnen heute?"}, nil
		case "fr-FR":
			return model.Transcript{Text: "court"}, nil
		case "zh-CN":
			return model.Transcript{}, errors.New("unsupported")
		default:
			return model.Transcript{Text: "Hello there."}, nil
		}
	})

	tr, err := services.NewAutoLanguage(backend, nil, nil).Transcribe(context.Background(), "a.wav", "")
	require.NoError(t, err)
	assert.Equal(t, append([]string{""}, services.SweepLanguages...), seen)
	assert.Equal(t, "de-DE", tr.DetectedLanguage)
	assert.InDelta(t, services.SweepConfidence(tr.Text), tr.Confidence, 1e-9)
	assert.Equal(t, model.TranscriptSuccess, tr.Status)
}

func TestAutoLanguageSweepWithoutSpeech(t *testing.T) {
	backend := services.TranscriberFunc(func(_ context.Context, _ string, _ string) (model.Transcript, error) {
		return model.Transcript{Text: "  "}, nil
	})
	tr, err := services.NewAutoLanguage(backend, []string{"en-US", "es-ES"}, nil).Transcribe(context.Background(), "a.wav", "auto")
	require.NoError(t, err)
	assert.Equal(t, model.TranscriptNoSpeech, tr.Status)
	assert.Empty(t, tr.Text)
}

func TestAutoLanguageSweepAllFailing(t *testing.T) {
	backend := services.TranscriberFunc(func(_ context.Context, _ string, _ string) (model.Transcript, error) {
		return model.Transcript{}, errors.New("backend down")
	})
	_, err := services.NewAutoLanguage(backend, []string{"en-US", "es-ES"}, nil).Transcribe(context.Background(), "a.wav", "auto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "es-ES")
}

func TestSweepConfidence(t *testing.T) {
	assert.InDelta(t, 0.62, services.SweepConfidence(strings.Repeat("a", 10)), 1e-9)
	assert.Equal(t, 0.95, services.SweepConfidence(strings.Repeat("a", 400)))
}

func TestGeminiTranscriber(t *testing.T) {
	wav := test.WriteWAV(t, filepath.Join(t.TempDir(), "audio.wav"), 16000, test.SineWave(16000, 0.1, 440, 0.3))
	fake := &test.FakeModel{Answer: func(prompt string) string {
		if strings.Contains(prompt, "The spoken language is en-US") {
			return `{"text":" Hello and welcome. ","detected_language":"en-US","segments":[{"start":0,"end":1.5,"text":"Hello and welcome."}]}`
		}
		return `{"text":"","segments":null}`
	}}
	tmpl, err := services.ParsePrompt("transcription", "", services.DefaultTranscriptionPrompt)
	require.NoError(t, err)
	tr := services.NewGeminiTranscriber(fake, tmpl, nil)

	got, err := tr.Transcribe(context.Background(), wav, "en-US")
	require.NoError(t, err)
	assert.Equal(t, "Hello and welcome.", got.Text)
	assert.Equal(t, model.TranscriptSuccess, got.Status)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, 1.5, got.Segments[0].End)

	silent, err := tr.Transcribe(context.Background(), wav, "")
	require.NoError(t, err)
	assert.Equal(t, model.TranscriptNoSpeech, silent.Status)
	assert.NotNil(t, silent.Segments)

	assert.Equal(t, []string{"audio/wav", "audio/wav"}, fake.MIMETypes())
}

func TestGeminiTranscriberMissingFile(t *testing.T) {
	tmpl, err := services.ParsePrompt("transcription", "", services.DefaultTranscriptionPrompt)
	require.NoError(t, err)
	_, err = services.NewGeminiTranscriber(&test.FakeModel{}, tmpl, nil).Transcribe(context.Background(), "/no/such.wav", "")
	assert.Error(t, err)
}
