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
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Segmenter splits a video into scenes.
type Segmenter interface {
	Segment(ctx context.Context, videoPath string, duration float64, threshold float64, maxScenes int) analysis.Segmentation
}

// SceneDetection runs the scene segmenter. It never fails the run; a
// detector failure degrades to fixed windows.
type SceneDetection struct {
	stageCommand
	segmenter Segmenter
}

func NewSceneDetection(segmenter Segmenter, logger *slog.Logger) *SceneDetection {
	cmd := &SceneDetection{stageCommand: newStageCommand(StageScenes, model.StateScenesDetected, logger), segmenter: segmenter}
	cmd.placeholder = func(run *model.PipelineRun, _ error) {
		run.Scenes = analysis.ScenesFromBoundaries(nil, run.VideoInfo.Duration)
		run.SceneFallback = true
	}
	return cmd
}

func (c *SceneDetection) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)

	seg := c.segmenter.Segment(context.GetContext(), run.VideoPath, run.VideoInfo.Duration, run.Config.SceneThreshold, run.Config.MaxScenes)
	run.Scenes = seg.Scenes
	run.SceneFallback = seg.Fallback

	c.logger.Info("scenes detected", "run_id", run.ID, "scenes", len(seg.Scenes), "fallback", seg.Fallback, "downsampled", seg.Downsampled)
	if seg.Err != nil {
		c.degraded(run, start, seg.Err)
		return
	}
	c.completed(run, start)
}
