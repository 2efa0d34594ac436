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
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// ErrEmptyAnswer is returned when a model answers without a summary.
var ErrEmptyAnswer = errors.New("model returned an empty summary")

// Backend names reported in TextInsights.Backend.
const (
	GeminiBackend = "gemini"
	OpenAIBackend = "openai"
)

// finishInsights merges a model answer with the counts only the local
// analysis can compute reliably.
func finishInsights(text string, answer model.TextInsights, backend string) (model.TextInsights, error) {
	answer.Summary = strings.TrimSpace(answer.Summary)
	if answer.Summary == "" {
		return model.TextInsights{}, ErrEmptyAnswer
	}
	local := analysis.TextInsightsOf(text)
	answer.WordCount = local.WordCount
	answer.SentenceCount = local.SentenceCount
	if answer.KeyPoints == nil {
		answer.KeyPoints = []string{}
	}
	if len(answer.Topics) == 0 {
		answer.Topics = local.Topics
	}
	if answer.Topics == nil {
		answer.Topics = []string{}
	}
	answer.Sentiment = strings.ToLower(strings.TrimSpace(answer.Sentiment))
	switch answer.Sentiment {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
	default:
		answer.Sentiment = analysis.SentimentLabel(answer.SentimentScore)
	}
	if answer.SentimentScore > 1 {
		answer.SentimentScore = 1
	} else if answer.SentimentScore < -1 {
		answer.SentimentScore = -1
	}
	if utf8.RuneCountInString(answer.Summary) > analysis.SummaryMaxChars {
		runes := []rune(answer.Summary)
		answer.Summary = string(runes[:analysis.SummaryMaxChars]) + "..."
	}
	answer.Backend = backend
	return answer, nil
}

// GeminiSummarizer asks Gemini for the summary, key points, topics and sentiment.
type GeminiSummarizer struct {
	model    cloud.ContentGenerator
	template *template.Template
	counters geminiCounters
	logger   *slog.Logger
}

// NewGeminiSummarizer creates a summarizer. template renders a prompt from
// TEXT, LANGUAGE and EXAMPLE_JSON.
func NewGeminiSummarizer(model cloud.ContentGenerator, template *template.Template, logger *slog.Logger) *GeminiSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiSummarizer{
		model:    model,
		template: template,
		counters: newGeminiCounters("summarizer"),
		logger:   logger.With("component", "gemini_summarizer"),
	}
}

func (g *GeminiSummarizer) Name() string {
	return GeminiBackend
}

// Summarize returns the no-speech insights for blank text without calling the model.
func (g *GeminiSummarizer) Summarize(ctx context.Context, text string, language string) (model.TextInsights, error) {
	if strings.TrimSpace(text) == "" {
		return analysis.TextInsightsOf(""), nil
	}
	prompt, err := render(g.template, map[string]interface{}{
		"TEXT":         text,
		"LANGUAGE":     language,
		"EXAMPLE_JSON": exampleJSON(exampleInsights()),
	})
	if err != nil {
		return model.TextInsights{}, err
	}
	raw, err := cloud.GenerateMultiModalResponse(ctx, g.counters.input, g.counters.output, g.counters.retry, g.model,
		cloud.NewUserContent(cloud.NewTextPart(prompt)))
	if err != nil {
		return model.TextInsights{}, err
	}
	var answer model.TextInsights
	if err := decodeJSON(raw, &answer); err != nil {
		return model.TextInsights{}, err
	}
	return finishInsights(text, answer, GeminiBackend)
}

// OpenAISummarizer summarizes through any OpenAI compatible chat completion
// endpoint.
type OpenAISummarizer struct {
	client openai.Client
	model  string
	prompt *template.Template
	logger *slog.Logger
}

// NewOpenAISummarizer creates a summarizer for cfg. An empty BaseURL uses the
// public OpenAI endpoint.
func NewOpenAISummarizer(cfg cloud.OpenAI, prompt *template.Template, logger *slog.Logger) (*OpenAISummarizer, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai summarizer requires a model name")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		prompt: prompt,
		logger: logger.With("component", "openai_summarizer"),
	}, nil
}

func (o *OpenAISummarizer) Name() string {
	return OpenAIBackend
}

func (o *OpenAISummarizer) Summarize(ctx context.Context, text string, language string) (model.TextInsights, error) {
	if strings.TrimSpace(text) == "" {
		return analysis.TextInsightsOf(""), nil
	}
	prompt, err := render(o.prompt, map[string]interface{}{
		"TEXT":         text,
		"LANGUAGE":     language,
		"EXAMPLE_JSON": exampleJSON(exampleInsights()),
	})
	if err != nil {
		return model.TextInsights{}, err
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You summarize video transcripts and answer only with JSON."),
			openai.UserMessage(prompt),
		},
		Model:       o.model,
		Temperature: openai.Float(0.2),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return model.TextInsights{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.TextInsights{}, ErrEmptyAnswer
	}

	var answer model.TextInsights
	if err := decodeJSON(resp.Choices[0].Message.Content, &answer); err != nil {
		return model.TextInsights{}, err
	}
	o.logger.DebugContext(ctx, "summary received", "model", o.model, "tokens", resp.Usage.TotalTokens)
	return finishInsights(text, answer, OpenAIBackend)
}
