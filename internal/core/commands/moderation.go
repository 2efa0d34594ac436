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
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// ContentModeration scores the transcript, detections and keyframes.
type ContentModeration struct {
	stageCommand
	engine *analysis.ContentModerationEngine
}

func NewContentModeration(engine *analysis.ContentModerationEngine, logger *slog.Logger) *ContentModeration {
	return &ContentModeration{stageCommand: newStageCommand(StageModeration, model.StateModerated, logger), engine: engine}
}

func (c *ContentModeration) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)
	if !run.Config.EnableModeration {
		c.skipped(run, start, ErrStageDisabled)
		return
	}

	report := c.engine.Moderate(run.Transcript.Text, run.Keyframes, run.Detections, moderationLanguage(run), frameCache(context))
	run.Moderation = &report
	c.logger.Info("content moderated", "run_id", run.ID, "score", report.SeverityScore, "rating", report.Rating)
	c.completed(run, start)
}

// moderationLanguage prefers the detected language, then an explicit
// configured one, then English.
func moderationLanguage(run *model.PipelineRun) string {
	if run.Transcript.DetectedLanguage != "" {
		return run.Transcript.DetectedLanguage
	}
	if run.Config.Language != "" && run.Config.Language != model.AutoLanguage {
		return run.Config.Language
	}
	return "en"
}
