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

	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/report"
)

// ReportAssembly writes analysis.json, metadata.json and summary.txt. The
// files describe the run as it will finish: a finished copy of the run,
// including this stage, is rendered, and its stage list and finish time are
// carried back onto the run. Failing to write the report fails the run.
type ReportAssembly struct {
	stageCommand
}

func NewReportAssembly(logger *slog.Logger) *ReportAssembly {
	cmd := &ReportAssembly{stageCommand: newStageCommand(StageReport, model.StateReportPersisted, logger)}
	cmd.fatal = true
	return cmd
}

func (c *ReportAssembly) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)

	final := *run
	final.Stages = append(append([]model.StageResult{}, run.Stages...), model.StageResult{
		Stage:      c.stage,
		Status:     model.StageCompleted,
		DurationMs: time.Since(start).Milliseconds(),
	})
	final.Finish(nil)

	artifacts, err := report.Assemble(&final)
	if err != nil {
		c.fail(context, run, start, err)
		return
	}
	run.Artifacts = artifacts
	run.Stages = final.Stages
	run.State = c.state
	run.FinishedAt = final.FinishedAt
	run.ProcessingTime = final.ProcessingTime
	c.logger.Info("report written", "run_id", run.ID, "dir", run.OutputDir)
}
