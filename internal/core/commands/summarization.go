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

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Summarizer produces text insights from a transcript.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, text string, language string) (model.TextInsights, error)
}

// Summarization summarizes the transcript. When the configured summarizer
// fails, the extractive summary is used and the stage is degraded.
type Summarization struct {
	stageCommand
	summarizer Summarizer
	fallback   Summarizer
}

// NewSummarization creates the stage. A nil summarizer means the extractive one.
func NewSummarization(summarizer Summarizer, logger *slog.Logger) *Summarization {
	fallback := analysis.NewExtractive()
	if summarizer == nil {
		summarizer = fallback
	}
	cmd := &Summarization{
		stageCommand: newStageCommand(StageSummarization, model.StateSummarized, logger),
		summarizer:   summarizer,
		fallback:     fallback,
	}
	cmd.placeholder = func(run *model.PipelineRun, _ error) {
		run.Summary = model.EmptyTextInsights()
	}
	return cmd
}

func (c *Summarization) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)
	if !run.Config.EnableSummarization {
		c.skipped(run, start, ErrStageDisabled)
		return
	}

	result := c.summarize(context.GetContext(), run.Transcript)
	run.Summary = result.Value
	applyResult(context, &c.stageCommand, run, start, result)
}

func (c *Summarization) summarize(ctx context.Context, t model.Transcript) model.Result[model.TextInsights] {
	insights, err := c.summarizer.Summarize(ctx, t.Text, t.DetectedLanguage)
	if err == nil {
		if insights.Backend == "" {
			insights.Backend = c.summarizer.Name()
		}
		return model.Ok(insights)
	}
	placeholder, fallbackErr := c.fallback.Summarize(ctx, t.Text, t.DetectedLanguage)
	if fallbackErr != nil {
		placeholder = model.EmptyTextInsights()
	}
	return model.Degraded(StageSummarization, placeholder, fmt.Errorf("%s summarizer: %w", c.summarizer.Name(), err))
}
