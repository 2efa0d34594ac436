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

package workflow

import (
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/services"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

// ModelSource looks up the configured Gemini models by logical name.
// *cloud.ServiceClients implements it, and a nil one has no models.
type ModelSource interface {
	AgentModel(name string) (*cloud.QuotaAwareGenerativeAIModel, bool)
}

// NewCollaborators builds the collaborators selected by the [backends],
// [prompt_templates], [openai] and [moderation] sections of config on top of
// the ffmpeg executor.
//
// Inputs:
//   - config: The loaded configuration.
//   - models: Source of the Gemini models; only consulted for "gemini" backends.
//   - executor: The ffmpeg executor backing probe, decode, audio and clips.
//   - logger: Parent logger.
//
// Outputs:
//   - Collaborators: Ready for NewVideoAnalysisWorkflow.
//   - error: An unknown backend, a missing model or an invalid prompt or lexicon.
func NewCollaborators(config *cloud.Config, models ModelSource, executor *media.Executor, logger *slog.Logger) (Collaborators, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := MediaCollaborators(executor)
	prompts := config.PromptTemplates

	model := func(name string) (cloud.ContentGenerator, error) {
		if models != nil {
			if m, ok := models.AgentModel(name); ok && m != nil {
				return m, nil
			}
		}
		return nil, fmt.Errorf("backend %q needs agent model %q", cloud.BackendGemini, name)
	}

	switch config.Backends.Detector {
	case "", cloud.BackendBasic:
		c.Detector = services.NewBasicCaptioner()
	case cloud.BackendGemini:
		m, err := model(cloud.ModelDetection)
		if err != nil {
			return c, err
		}
		t, err := services.ParsePrompt("detection", prompts.DetectionPrompt, services.DefaultDetectionPrompt)
		if err != nil {
			return c, err
		}
		c.Detector = services.NewGeminiDetector(m, t, logger)
	default:
		return c, fmt.Errorf("unknown detector backend %q", config.Backends.Detector)
	}

	switch config.Backends.Transcriber {
	case "", cloud.BackendNone:
	case cloud.BackendGemini:
		m, err := model(cloud.ModelTranscription)
		if err != nil {
			return c, err
		}
		t, err := services.ParsePrompt("transcription", prompts.TranscriptionPrompt, services.DefaultTranscriptionPrompt)
		if err != nil {
			return c, err
		}
		c.Transcriber = services.NewAutoLanguage(services.NewGeminiTranscriber(m, t, logger), nil, logger)
	default:
		return c, fmt.Errorf("unknown transcriber backend %q", config.Backends.Transcriber)
	}

	switch config.Backends.Summarizer {
	case "", cloud.BackendExtractive:
		c.Summarizer = analysis.NewExtractive()
	case cloud.BackendGemini:
		m, err := model(cloud.ModelSummary)
		if err != nil {
			return c, err
		}
		t, err := services.ParsePrompt("summary", prompts.SummaryPrompt, services.DefaultSummaryPrompt)
		if err != nil {
			return c, err
		}
		c.Summarizer = services.NewGeminiSummarizer(m, t, logger)
	case cloud.BackendOpenAI:
		t, err := services.ParsePrompt("summary", prompts.SummaryPrompt, services.DefaultSummaryPrompt)
		if err != nil {
			return c, err
		}
		s, err := services.NewOpenAISummarizer(config.OpenAI, t, logger)
		if err != nil {
			return c, err
		}
		c.Summarizer = s
	default:
		return c, fmt.Errorf("unknown summarizer backend %q", config.Backends.Summarizer)
	}

	if path := config.Moderation.LexiconPath; path != "" {
		lexicon, err := analysis.LoadLexicon(path)
		if err != nil {
			return c, err
		}
		c.Lexicon = lexicon
	}
	return c, nil
}
