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
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Selector extracts one keyframe per scene.
type Selector interface {
	Select(ctx context.Context, videoPath string, fps float64, scenes []model.Scene, storyboardDir string, cache *analysis.FrameCache) analysis.KeyframeBatch
}

// KeyframeExtraction writes the storyboard. Individual scene failures are
// counted and degrade the stage; they never fail the run.
type KeyframeExtraction struct {
	stageCommand
	selector Selector
}

func NewKeyframeExtraction(selector Selector, logger *slog.Logger) *KeyframeExtraction {
	cmd := &KeyframeExtraction{stageCommand: newStageCommand(StageKeyframes, model.StateKeyframesExtracted, logger), selector: selector}
	cmd.placeholder = func(run *model.PipelineRun, _ error) {
		run.Keyframes = []model.Keyframe{}
		run.Artifacts.Storyboard = []string{}
	}
	return cmd
}

func (c *KeyframeExtraction) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)

	dir := filepath.Join(run.OutputDir, analysis.StoryboardDir)
	batch := c.selector.Select(context.GetContext(), run.VideoPath, run.VideoInfo.EffectiveFPS(), run.Scenes, dir, frameCache(context))

	run.Keyframes = batch.Keyframes
	run.KeyframeFailures = len(batch.Failures)
	run.Artifacts.Storyboard = make([]string, 0, len(batch.Keyframes))
	for _, kf := range batch.Keyframes {
		run.Artifacts.Storyboard = append(run.Artifacts.Storyboard, filepath.ToSlash(filepath.Join(analysis.StoryboardDir, filepath.Base(kf.ImageRef))))
	}

	c.logger.Info("keyframes extracted", "run_id", run.ID, "extracted", len(batch.Keyframes), "failed", len(batch.Failures))
	if len(batch.Failures) > 0 {
		c.degraded(run, start, fmt.Errorf("%d of %d keyframes failed: %w", len(batch.Failures), len(run.Scenes), batch.Failures[0].Err))
		return
	}
	c.completed(run, start)
}
