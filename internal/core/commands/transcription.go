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

	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Transcriber turns a WAV file into a transcript. language is a BCP-47 tag
// or "auto".
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, language string) (model.Transcript, error)
}

// Transcription transcribes the extracted audio. Without audio the
// transcript is the no_audio placeholder; a transcriber error leaves the
// error placeholder and degrades the stage.
type Transcription struct {
	stageCommand
	transcriber Transcriber
}

func NewTranscription(transcriber Transcriber, logger *slog.Logger) *Transcription {
	cmd := &Transcription{stageCommand: newStageCommand(StageTranscription, model.StateTranscribed, logger), transcriber: transcriber}
	cmd.placeholder = func(run *model.PipelineRun, cause error) {
		run.Transcript = model.EmptyTranscript(model.TranscriptError, "")
		run.Transcript.Error = cause.Error()
	}
	return cmd
}

func (c *Transcription) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)
	if !run.Config.EnableTranscription {
		run.Transcript = model.EmptyTranscript(model.TranscriptSkipped, "")
		c.skipped(run, start, ErrStageDisabled)
		return
	}
	if !run.Audio.Extracted {
		run.Transcript = model.EmptyTranscript(model.TranscriptNoAudio, "")
		c.completed(run, start)
		return
	}

	result := c.transcribe(context.GetContext(), run)
	run.Transcript = result.Value
	applyResult(context, &c.stageCommand, run, start, result)
}

func (c *Transcription) transcribe(ctx context.Context, run *model.PipelineRun) model.Result[model.Transcript] {
	t, err := c.transcriber.Transcribe(ctx, run.Audio.Path, run.Config.Language)
	if err != nil {
		placeholder := model.EmptyTranscript(model.TranscriptError, "")
		placeholder.Error = err.Error()
		return model.Degraded(StageTranscription, placeholder, err)
	}
	if t.Segments == nil {
		t.Segments = []model.TranscriptSegment{}
	}
	if t.Status == "" {
		t.Status = model.TranscriptSuccess
		if t.Text == "" {
			t.Status = model.TranscriptNoSpeech
		}
	}
	c.logger.Info("audio transcribed", "run_id", run.ID, "language", t.DetectedLanguage, "status", t.Status, "chars", len(t.Text))
	return model.Ok(t)
}
