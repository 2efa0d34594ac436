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
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// ErrStageDisabled is the reason recorded on stages turned off in the config.
var ErrStageDisabled = errors.New("disabled by configuration")

// Detector captions keyframes and lists their objects. It returns the
// results it could produce together with the joined per-keyframe errors.
type Detector interface {
	Detect(ctx context.Context, keyframes []model.Keyframe) ([]model.DetectionResult, error)
}

// ObjectDetection runs the detector over the storyboard.
type ObjectDetection struct {
	stageCommand
	detector Detector
}

func NewObjectDetection(detector Detector, logger *slog.Logger) *ObjectDetection {
	cmd := &ObjectDetection{stageCommand: newStageCommand(StageDetection, model.StateDetected, logger), detector: detector}
	cmd.placeholder = func(run *model.PipelineRun, _ error) {
		run.Detections = []model.DetectionResult{}
	}
	return cmd
}

func (c *ObjectDetection) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)
	if !run.Config.EnableDetection {
		c.skipped(run, start, ErrStageDisabled)
		return
	}
	if len(run.Keyframes) == 0 {
		c.completed(run, start)
		return
	}

	results, err := c.detector.Detect(context.GetContext(), run.Keyframes)
	if results == nil {
		results = []model.DetectionResult{}
	}
	run.Detections = results
	if err != nil {
		c.degraded(run, start, err)
		return
	}
	c.logger.Info("keyframes analysed", "run_id", run.ID, "detections", len(results))
	c.completed(run, start)
}
