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
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

// AudioFile is the run-relative name of the extracted speech track.
const AudioFile = "audio.wav"

// AudioExtractor writes the speech track of a video to a WAV file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, input string, output string) model.AudioOutcome
}

// AudioExtraction runs when transcription is enabled. A video without an
// audio track skips the stage; an extraction failure degrades it.
type AudioExtraction struct {
	stageCommand
	extractor AudioExtractor
}

func NewAudioExtraction(extractor AudioExtractor, logger *slog.Logger) *AudioExtraction {
	cmd := &AudioExtraction{stageCommand: newStageCommand(StageAudio, model.StateAudioExtracted, logger), extractor: extractor}
	cmd.placeholder = func(run *model.PipelineRun, cause error) {
		run.Audio = model.AudioReport{Reason: cause.Error()}
		run.Artifacts.Audio = ""
	}
	return cmd
}

func (c *AudioExtraction) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)
	if !run.Config.EnableTranscription {
		run.Audio = model.AudioReport{Reason: ErrStageDisabled.Error()}
		c.skipped(run, start, ErrStageDisabled)
		return
	}
	if !run.VideoInfo.HasAudio {
		run.Audio = model.AudioReport{Reason: media.ErrNoAudioStream.Error()}
		c.skipped(run, start, media.ErrNoAudioStream)
		return
	}

	outcome := c.extractor.ExtractAudio(context.GetContext(), run.VideoPath, filepath.Join(run.OutputDir, AudioFile))
	if !outcome.OK() {
		run.Audio = model.AudioReport{Reason: outcome.Reason}
		c.degraded(run, start, errors.New(outcome.Reason))
		return
	}
	run.Audio = model.AudioReport{Extracted: true, Path: outcome.Path}
	run.Artifacts.Audio = AudioFile
	c.completed(run, start)
}

// AudioAnalysis measures the extracted WAV and renders its waveform.
type AudioAnalysis struct {
	stageCommand
}

func NewAudioAnalysis(logger *slog.Logger) *AudioAnalysis {
	return &AudioAnalysis{stageCommand: newStageCommand(StageAudioAnalysis, model.StateAudioExtracted, logger)}
}

func (c *AudioAnalysis) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)
	if !run.Audio.Extracted {
		reason := run.Audio.Reason
		if reason == "" {
			reason = "no audio extracted"
		}
		c.skipped(run, start, errors.New(reason))
		return
	}

	props, pcm, err := analysis.MeasureAudio(run.Audio.Path)
	if err != nil {
		c.degraded(run, start, fmt.Errorf("audio properties: %w", err))
		return
	}
	run.Audio.Properties = &props

	if err := analysis.WriteWaveform(pcm, filepath.Join(run.OutputDir, analysis.WaveformFile)); err != nil {
		c.degraded(run, start, fmt.Errorf("waveform: %w", err))
		return
	}
	run.Audio.Waveform = analysis.WaveformFile
	run.Artifacts.Waveform = analysis.WaveformFile

	c.logger.Info("audio analysed", "run_id", run.ID, "dbfs", props.LoudnessDBFS, "quality", props.QualityScore)
	c.completed(run, start)
}
