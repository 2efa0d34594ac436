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

type QualityScoring struct {
	stageCommand
	scorer *analysis.QualityScorer
}

func NewQualityScoring(scorer *analysis.QualityScorer, logger *slog.Logger) *QualityScoring {
	return &QualityScoring{stageCommand: newStageCommand(StageQuality, model.StateQualityScored, logger), scorer: scorer}
}

func (c *QualityScoring) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)
	if !run.Config.EnableQuality {
		c.skipped(run, start, ErrStageDisabled)
		return
	}
	report := c.scorer.Score(run.VideoInfo, run.Keyframes, frameCache(context))
	run.Quality = &report
	c.completed(run, start)
}
