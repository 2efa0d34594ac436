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
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

// ClipMaker cuts and joins clips of a video.
type ClipMaker interface {
	Summarize(ctx context.Context, input string, output string, spans []media.ClipSpan, fallbackSeconds float64) (model.ClipOutcome, bool)
}

// SummaryVideo condenses the busiest scenes into summary.mp4.
type SummaryVideo struct {
	stageCommand
	clips ClipMaker
}

func NewSummaryVideo(clips ClipMaker, logger *slog.Logger) *SummaryVideo {
	cmd := &SummaryVideo{stageCommand: newStageCommand(StageSummaryVideo, model.StateQualityScored, logger), clips: clips}
	cmd.placeholder = func(run *model.PipelineRun, _ error) {
		run.SummaryVideo = nil
		run.Artifacts.SummaryVideo = ""
	}
	return cmd
}

func (c *SummaryVideo) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)
	if !run.Config.EnableSummaryVideo {
		c.skipped(run, start, ErrStageDisabled)
		return
	}

	plan := analysis.PlanSummary(run.Scenes, run.Detections, analysis.SummaryClipCount)
	output := filepath.Join(run.OutputDir, analysis.SummaryVideoFile)
	outcome, fallback := c.clips.Summarize(context.GetContext(), run.VideoPath, output, plan.Spans, analysis.FallbackClipSeconds(run.VideoInfo.Duration))

	summary := &model.SummaryVideo{Scenes: plan.Scenes, Fallback: fallback}
	if fallback {
		summary.Scenes = []int{}
	}
	run.SummaryVideo = summary
	if !outcome.OK() {
		c.degraded(run, start, errors.New(outcome.Reason))
		return
	}
	summary.Path = analysis.SummaryVideoFile
	run.Artifacts.SummaryVideo = analysis.SummaryVideoFile
	c.logger.Info("summary video written", "run_id", run.ID, "scenes", len(summary.Scenes), "fallback", fallback)
	c.completed(run, start)
}
