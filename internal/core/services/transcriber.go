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
	"os"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// GeminiTranscriber sends the extracted WAV file inline to Gemini and asks
// for a timed transcript.
type GeminiTranscriber struct {
	model    cloud.ContentGenerator
	template *template.Template
	counters geminiCounters
	logger   *slog.Logger
}

// NewGeminiTranscriber creates a transcriber. template renders a prompt from
// LANGUAGE (empty when unknown) and EXAMPLE_JSON.
func NewGeminiTranscriber(model cloud.ContentGenerator, template *template.Template, logger *slog.Logger) *GeminiTranscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiTranscriber{
		model:    model,
		template: template,
		counters: newGeminiCounters("transcriber"),
		logger:   logger.With("component", "gemini_transcriber"),
	}
}

type transcriptAnswer struct {
	Text     string                    `json:"text"`
	Language string                    `json:"detected_language"`
	Segments []model.TranscriptSegment `json:"segments"`
}

// Transcribe transcribes audioPath. An empty language lets the model detect it.
func (g *GeminiTranscriber) Transcribe(ctx context.Context, audioPath string, language string) (model.Transcript, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return model.Transcript{}, err
	}
	prompt, err := render(g.template, map[string]interface{}{
		"LANGUAGE":     language,
		"EXAMPLE_JSON": exampleJSON(model.GetExampleTranscript()),
	})
	if err != nil {
		return model.Transcript{}, err
	}

	raw, err := cloud.GenerateMultiModalResponse(ctx, g.counters.input, g.counters.output, g.counters.retry, g.model,
		cloud.NewUserContent(cloud.NewTextPart(prompt), cloud.NewInlinePart(audio, "audio/wav")))
	if err != nil {
		return model.Transcript{}, err
	}

	var answer transcriptAnswer
	if err := decodeJSON(raw, &answer); err != nil {
		return model.Transcript{}, err
	}

	t := model.Transcript{
		Text:             strings.TrimSpace(answer.Text),
		Segments:         answer.Segments,
		DetectedLanguage: answer.Language,
		Status:           model.TranscriptSuccess,
	}
	if t.Segments == nil {
		t.Segments = []model.TranscriptSegment{}
	}
	if t.DetectedLanguage == "" {
		t.DetectedLanguage = language
	}
	if t.Text == "" {
		t.Status = model.TranscriptNoSpeech
	}
	g.logger.DebugContext(ctx, "transcribed audio", "path", audioPath, "language", t.DetectedLanguage, "chars", len(t.Text))
	return t, nil
}

// TranscriptionBackend is what AutoLanguage wraps. An empty language asks the
// backend to detect it; backends that cannot should return an empty
// DetectedLanguage.
type TranscriptionBackend interface {
	Transcribe(ctx context.Context, audioPath string, language string) (model.Transcript, error)
}

// TranscriberFunc adapts a function to TranscriptionBackend.
type TranscriberFunc func(ctx context.Context, audioPath string, language string) (model.Transcript, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, audioPath string, language string) (model.Transcript, error) {
	return f(ctx, audioPath, language)
}

// ErrNoTranscriber is returned by the transcriber used when the backend is "none".
var ErrNoTranscriber = errors.New("no transcription backend configured")
