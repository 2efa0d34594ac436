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

package workflow

import (
	"fmt"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/telemetry"
)

// StageProgress is the fraction of the run reported once a stage ends.
var StageProgress = map[string]float64{
	commands.StageMetadata:      0.05,
	commands.StageScenes:        0.15,
	commands.StageKeyframes:     0.30,
	commands.StageDetection:     0.45,
	commands.StageAudio:         0.50,
	commands.StageAudioAnalysis: 0.55,
	commands.StageTranscription: 0.60,
	commands.StageSummarization: 0.75,
	commands.StageModeration:    0.85,
	commands.StageQuality:       0.92,
	commands.StageSummaryVideo:  0.95,
	commands.StageReport:        0.97,
}

// StageDone is the stage name of the final notification of a run.
const StageDone = "done"

// progressObserver reports each finished stage to the sink and the
// Prometheus collectors. Fractions never decrease.
type progressObserver struct {
	run  *model.PipelineRun
	sink model.ProgressSink
	last float64
}

func newProgressObserver(run *model.PipelineRun, sink model.ProgressSink) *progressObserver {
	return &progressObserver{run: run, sink: sink}
}

func (o *progressObserver) CommandStarted(cor.Command, cor.Context) {}

func (o *progressObserver) CommandFinished(command cor.Command, _ cor.Context, executed bool, elapsed time.Duration) {
	stage, ok := command.(commands.StageCommand)
	if !ok || !executed {
		return
	}
	result, ok := o.run.Stage(stage.Stage())
	if !ok {
		return
	}
	telemetry.RecordStage(result.Stage, string(result.Status), elapsed)
	if result.Stage == commands.StageKeyframes {
		telemetry.RecordKeyframeFailures(o.run.KeyframeFailures)
	}
	if result.Status == model.StageFailed {
		return
	}

	message := fmt.Sprintf("%s %s", result.Stage, result.Status)
	if result.Error != "" {
		message += ": " + result.Error
	}
	o.report(result.Stage, message, StageProgress[result.Stage])
}

// finished sends the terminal notification: 1.0 for a successful run, the
// last fraction reached for a failed one.
func (o *progressObserver) finished() {
	if o.run.Success {
		o.report(StageDone, "analysis complete", 1.0)
		return
	}
	o.report(StageDone, "analysis failed: "+o.run.Error, o.last)
}

func (o *progressObserver) report(stage string, message string, fraction float64) {
	if fraction < o.last {
		fraction = o.last
	}
	o.last = fraction
	o.sink.Report(model.Progress{
		RunID:    o.run.ID,
		Stage:    stage,
		Message:  message,
		Fraction: fraction,
		State:    o.run.State,
		Time:     time.Now().UTC(),
	})
}
