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

// Package commands holds the cor.Command implementations the workflows are
// assembled from. There is one command per analysis stage plus the commands
// of the GCS-triggered ingestion flow.
//
// Stage commands share a single *model.PipelineRun stored under RunParam.
// Each one:
//  1. records "skipped" and leaves the placeholder value when its toggle is off;
//  2. runs its component and stores the output on the run;
//  3. records "degraded" with a placeholder when the component failed in a way
//     the run can absorb;
//  4. records "failed" and adds a fatal model.StageError to the context only
//     when the run cannot continue, which stops the chain.
//
// Success and error counters are maintained by the chain, not here.
package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Context keys shared by the commands.
const (
	// RunParam holds the *model.PipelineRun being analysed.
	RunParam = "__RUN__"
	// FrameCacheParam holds the per-run *analysis.FrameCache.
	FrameCacheParam = "__FRAME_CACHE__"
	// ArtifactPrefixParam holds the gs:// prefix the run artifacts were uploaded to.
	ArtifactPrefixParam = "__ARTIFACT_PREFIX__"
)

// Stage names, as recorded in StageResult.Stage.
const (
	StageMetadata      = "metadata"
	StageScenes        = "scenes"
	StageKeyframes     = "keyframes"
	StageDetection     = "detection"
	StageAudio         = "audio_extraction"
	StageAudioAnalysis = "audio_analysis"
	StageTranscription = "transcription"
	StageSummarization = "summarization"
	StageModeration    = "moderation"
	StageQuality       = "quality"
	StageSummaryVideo  = "summary_video"
	StageReport        = "report"
)

// StageCommand is implemented by every analysis stage. The orchestrator uses
// it to map commands to progress notifications.
type StageCommand interface {
	cor.Command
	Stage() string
	State() model.RunState
}

// stageCommand is embedded by the stage commands.
type stageCommand struct {
	cor.BaseCommand
	stage  string
	state  model.RunState
	logger *slog.Logger

	// fatal stages fail the run when their component panics.
	fatal bool
	// placeholder resets the stage output after a panic.
	placeholder func(run *model.PipelineRun, cause error)
}

func newStageCommand(stage string, state model.RunState, logger *slog.Logger) stageCommand {
	base := *cor.NewBaseCommand(stage)
	base.InputParamName = RunParam
	base.OutputParamName = RunParam
	if logger == nil {
		logger = slog.Default()
	}
	return stageCommand{BaseCommand: base, stage: stage, state: state, logger: logger.With("stage", stage)}
}

// Stage is the name recorded on the run.
func (c *stageCommand) Stage() string {
	return c.stage
}

// State is the run state reached once the stage ends.
func (c *stageCommand) State() model.RunState {
	return c.state
}

// run returns the shared run. IsExecutable guarantees it is present.
func (c *stageCommand) run(context cor.Context) *model.PipelineRun {
	run, _ := cor.Value[*model.PipelineRun](context, RunParam)
	return run
}

func (c *stageCommand) record(run *model.PipelineRun, status model.StageStatus, start time.Time, err error) {
	result := model.StageResult{
		Stage:      c.stage,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	run.RecordStage(result)
	if status != model.StageFailed {
		run.State = c.state
	}
}

func (c *stageCommand) completed(run *model.PipelineRun, start time.Time) {
	c.record(run, model.StageCompleted, start, nil)
}

func (c *stageCommand) skipped(run *model.PipelineRun, start time.Time, reason error) {
	c.logger.Debug("stage skipped", "run_id", run.ID)
	c.record(run, model.StageSkipped, start, reason)
}

func (c *stageCommand) degraded(run *model.PipelineRun, start time.Time, cause error) {
	c.logger.Warn("stage degraded", "run_id", run.ID, "error", cause)
	c.record(run, model.StageDegraded, start, cause)
}

// fail records the stage as failed and stops the chain.
func (c *stageCommand) fail(context cor.Context, run *model.PipelineRun, start time.Time, cause error) {
	c.logger.Error("stage failed", "run_id", run.ID, "error", cause)
	c.record(run, model.StageFailed, start, cause)
	context.AddError(c.GetName(), model.Fatal(c.stage, cause))
}

// Recover records a panic raised while the stage ran. Fatal stages fail the
// run; every other stage is degraded and its output reset to the placeholder.
func (c *stageCommand) Recover(context cor.Context, value interface{}) {
	run := c.run(context)
	start := time.Now()
	cause := fmt.Errorf("%s stage panicked: %v", c.stage, value)
	if c.fatal {
		c.fail(context, run, start, cause)
		return
	}
	if c.placeholder != nil {
		c.placeholder(run, cause)
	}
	c.degraded(run, start, cause)
}

// frameCache returns the per-run cache, or nil when none was installed.
func frameCache(context cor.Context) *analysis.FrameCache {
	cache, _ := cor.Value[*analysis.FrameCache](context, FrameCacheParam)
	return cache
}

// applyResult records a typed stage outcome. A fatal result stops the chain.
func applyResult[T any](context cor.Context, c *stageCommand, run *model.PipelineRun, start time.Time, result model.Result[T]) {
	switch result.Status() {
	case model.StageCompleted:
		c.completed(run, start)
	case model.StageDegraded:
		c.degraded(run, start, result.Err.Cause)
	default:
		c.fail(context, run, start, result.Err.Cause)
	}
}
