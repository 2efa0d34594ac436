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

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// LanguageAuto asks the transcriber to detect the spoken language.
const LanguageAuto = "auto"

// SweepLanguages are tried in order when the backend cannot report the
// language it heard.
var SweepLanguages = []string{"en-US", "es-ES", "fr-FR", "de-DE", "zh-CN", "hi-IN", "ar-SA", "ru-RU"}

const (
	explicitLanguageConfidence = 0.85
	reportedLanguageConfidence = 0.9
	sweepMinChars              = 10
	sweepBaseConfidence        = 0.6
	sweepMaxConfidence         = 0.95
)

// AutoLanguage resolves the transcription language.
//
// With an explicit language the backend is called once and the transcript
// gets a fixed confidence. With "auto" the backend is first asked to detect
// the language itself. If it cannot, every sweep language is tried and the
// transcript with the highest confidence wins, where confidence grows with
// the amount of recognised text.
type AutoLanguage struct {
	backend TranscriptionBackend
	sweep   []string
	logger  *slog.Logger
}

// NewAutoLanguage wraps backend. A nil sweep uses SweepLanguages.
func NewAutoLanguage(backend TranscriptionBackend, sweep []string, logger *slog.Logger) *AutoLanguage {
	if sweep == nil {
		sweep = SweepLanguages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoLanguage{backend: backend, sweep: sweep, logger: logger.With("component", "auto_language")}
}

// SweepConfidence is the confidence given to a sweep transcript of text.
func SweepConfidence(text string) float64 {
	return math.Min(sweepMaxConfidence, sweepBaseConfidence+float64(utf8.RuneCountInString(text))/500)
}

// Transcribe returns the transcript of audioPath in language, or in the
// detected language when language is "auto" or empty.
func (a *AutoLanguage) Transcribe(ctx context.Context, audioPath string, language string) (model.Transcript, error) {
	if language != "" && !strings.EqualFold(language, LanguageAuto) {
		t, err := a.backend.Transcribe(ctx, audioPath, language)
		if err != nil {
			return model.Transcript{}, err
		}
		if t.DetectedLanguage == "" {
			t.DetectedLanguage = language
		}
		return withConfidence(t, explicitLanguageConfidence), nil
	}

	t, err := a.backend.Transcribe(ctx, audioPath, "")
	if err == nil && t.DetectedLanguage != "" {
		if strings.TrimSpace(t.Text) == "" {
			return model.EmptyTranscript(model.TranscriptNoSpeech, t.DetectedLanguage), nil
		}
		return withConfidence(t, reportedLanguageConfidence), nil
	}
	if err != nil {
		a.logger.DebugContext(ctx, "language detection failed, sweeping", "error", err)
	}
	return a.sweepLanguages(ctx, audioPath)
}

func (a *AutoLanguage) sweepLanguages(ctx context.Context, audioPath string) (model.Transcript, error) {
	var (
		best     *model.Transcript
		errs     []error
		attempts int
	)
	for _, lang := range a.sweep {
		if err := ctx.Err(); err != nil {
			return model.Transcript{}, err
		}
		attempts++
		t, err := a.backend.Transcribe(ctx, audioPath, lang)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
			continue
		}
		text := strings.TrimSpace(t.Text)
		if utf8.RuneCountInString(text) <= sweepMinChars {
			continue
		}
		t.Text = text
		t.DetectedLanguage = lang
		t = withConfidence(t, SweepConfidence(text))
		if best == nil || t.Confidence > best.Confidence {
			best = &t
		}
	}

	if best != nil {
		a.logger.InfoContext(ctx, "language detected", "language", best.DetectedLanguage, "confidence", best.Confidence)
		return *best, nil
	}
	if attempts > 0 && len(errs) == attempts {
		return model.Transcript{}, errors.Join(errs...)
	}
	return model.EmptyTranscript(model.TranscriptNoSpeech, ""), nil
}

func withConfidence(t model.Transcript, confidence float64) model.Transcript {
	t.Confidence = confidence
	if t.Segments == nil {
		t.Segments = []model.TranscriptSegment{}
	}
	if strings.TrimSpace(t.Text) == "" {
		t.Status = model.TranscriptNoSpeech
	} else {
		t.Status = model.TranscriptSuccess
	}
	return t
}
