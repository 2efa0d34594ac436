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

// Package workflow defines the high-level orchestrations, combining the
// commands into pipelines. This file implements the video analysis pipeline:
// one cor chain of stage commands per run, sharing a *model.PipelineRun.
//
// Logic Flow:
//  1. RunWithID creates the run and its output directory, then installs the
//     run and a fresh frame cache in a new chain context.
//  2. The chain executes the stages in order. Degraded stages only record a
//     StageResult; a fatal stage adds an error, which stops the chain.
//  3. The progress observer turns every finished stage into a notification
//     and updates the stage metrics.
//  4. The run is finished with the chain error, if any, and a final
//     notification is sent.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/services"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
	"github.com/jaycherian/gcp-go-video-insight/internal/telemetry"
)

// Collaborators are the external services the pipeline calls. Prober,
// Decoder, Audio and Clips are required. A nil Boundaries detector makes the
// segmenter use fixed windows, a nil Detector uses the basic captioner, a nil
// Transcriber degrades transcription and a nil Summarizer uses the extractive
// one. A nil Lexicon loads the embedded one.
type Collaborators struct {
	Prober      commands.Prober
	Boundaries  analysis.BoundaryDetector
	Decoder     media.FrameDecoder
	Detector    commands.Detector
	Audio       commands.AudioExtractor
	Transcriber commands.Transcriber
	Summarizer  commands.Summarizer
	Clips       commands.ClipMaker
	Lexicon     *analysis.Lexicon
}

// MediaCollaborators fills the ffmpeg-backed collaborators from executor.
func MediaCollaborators(executor *media.Executor) Collaborators {
	return Collaborators{
		Prober:     executor,
		Boundaries: executor,
		Decoder:    media.NewDecoder(executor),
		Audio:      executor,
		Clips:      executor,
	}
}

// VideoAnalysisWorkflow runs the analysis pipeline. It is safe for
// concurrent use; every run gets its own chain and context.
type VideoAnalysisWorkflow struct {
	collaborators Collaborators
	segmenter     *analysis.SceneSegmenter
	moderation    *analysis.ContentModerationEngine
	quality       *analysis.QualityScorer
	logger        *slog.Logger
}

// NewVideoAnalysisWorkflow validates the collaborators and fills the
// optional ones with their defaults.
func NewVideoAnalysisWorkflow(c Collaborators, logger *slog.Logger) (*VideoAnalysisWorkflow, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var missing []error
	if c.Prober == nil {
		missing = append(missing, errors.New("prober is required"))
	}
	if c.Decoder == nil {
		missing = append(missing, errors.New("frame decoder is required"))
	}
	if c.Audio == nil {
		missing = append(missing, errors.New("audio extractor is required"))
	}
	if c.Clips == nil {
		missing = append(missing, errors.New("clip maker is required"))
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	if c.Detector == nil {
		c.Detector = services.NewBasicCaptioner()
	}
	if c.Transcriber == nil {
		c.Transcriber = services.TranscriberFunc(func(context.Context, string, string) (model.Transcript, error) {
			return model.Transcript{}, services.ErrNoTranscriber
		})
	}
	if c.Lexicon == nil {
		lexicon, err := analysis.DefaultLexicon()
		if err != nil {
			return nil, err
		}
		c.Lexicon = lexicon
	}

	return &VideoAnalysisWorkflow{
		collaborators: c,
		segmenter:     analysis.NewSceneSegmenter(c.Boundaries, logger),
		moderation:    analysis.NewContentModerationEngine(c.Lexicon, logger),
		quality:       analysis.NewQualityScorer(logger),
		logger:        logger.With("component", "video_analysis_workflow"),
	}, nil
}

// newChain builds the stage chain. The keyframe selector is sized from the
// run configuration.
func (w *VideoAnalysisWorkflow) newChain(cfg model.PipelineConfig, observer cor.ChainObserver) cor.Chain {
	c := w.collaborators
	chain := cor.NewBaseChain("video-analysis")
	chain.ContinueOnFailure(false)
	chain.AddObserver(observer)

	chain.AddCommand(commands.NewVideoMetadata(c.Prober, w.logger))
	chain.AddCommand(commands.NewSceneDetection(w.segmenter, w.logger))
	chain.AddCommand(commands.NewKeyframeExtraction(analysis.NewKeyframeSelector(c.Decoder, cfg.KeyframeWorkers, w.logger), w.logger))
	chain.AddCommand(commands.NewObjectDetection(c.Detector, w.logger))
	chain.AddCommand(commands.NewAudioExtraction(c.Audio, w.logger))
	chain.AddCommand(commands.NewAudioAnalysis(w.logger))
	chain.AddCommand(commands.NewTranscription(c.Transcriber, w.logger))
	chain.AddCommand(commands.NewSummarization(c.Summarizer, w.logger))
	chain.AddCommand(commands.NewContentModeration(w.moderation, w.logger))
	chain.AddCommand(commands.NewQualityScoring(w.quality, w.logger))
	chain.AddCommand(commands.NewSummaryVideo(c.Clips, w.logger))
	chain.AddCommand(commands.NewReportAssembly(w.logger))
	return chain
}

// Run analyses videoPath into outputDir under a generated run id.
func (w *VideoAnalysisWorkflow) Run(ctx context.Context, videoPath string, outputDir string, cfg model.PipelineConfig, sink model.ProgressSink) *model.PipelineRun {
	return w.RunWithID(ctx, "", videoPath, outputDir, cfg, sink)
}

// RunWithID analyses videoPath and always returns a terminal run.
//
// Inputs:
//   - ctx: Cancels the run at the next stage boundary.
//   - id: The run id; generated when empty.
//   - videoPath: The local source video.
//   - outputDir: Receives the artifacts; created when missing.
//   - cfg: Stage toggles and parameters, normalised.
//   - sink: Optional progress receiver, called on this goroutine.
//
// Outputs:
//   - *model.PipelineRun: Done, or Failed with Error set.
func (w *VideoAnalysisWorkflow) RunWithID(ctx context.Context, id string, videoPath string, outputDir string, cfg model.PipelineConfig, sink model.ProgressSink) *model.PipelineRun {
	if sink == nil {
		sink = model.ProgressSinks{}
	}
	run := model.NewPipelineRun(id, videoPath, outputDir, cfg)
	logger := w.logger.With("run_id", run.ID)
	logger.InfoContext(ctx, "analysis started", "video", videoPath, "output_dir", outputDir)

	telemetry.RunStarted()
	defer func() {
		telemetry.RunFinished(run.Success, time.Duration(run.ProcessingTime*float64(time.Second)))
	}()

	observer := newProgressObserver(run, sink)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		run.Finish(fmt.Errorf("failed to create output directory: %w", err))
		observer.finished()
		logger.ErrorContext(ctx, "analysis failed", "error", run.Error)
		return run
	}

	chCtx := cor.NewBaseContextWith(ctx)
	defer chCtx.Close()
	chCtx.Add(commands.RunParam, run)
	chCtx.Add(commands.FrameCacheParam, analysis.NewFrameCache())

	w.newChain(run.Config, observer).Execute(chCtx)

	run.Finish(chCtx.Err())
	observer.finished()
	if run.Success {
		logger.InfoContext(ctx, "analysis finished", "scenes", len(run.Scenes), "keyframes", len(run.Keyframes), "seconds", run.ProcessingTime)
	} else {
		logger.ErrorContext(ctx, "analysis failed", "error", run.Error, "last_stage", lastStage(run))
	}
	return run
}

func lastStage(run *model.PipelineRun) string {
	if len(run.Stages) == 0 {
		return ""
	}
	return run.Stages[len(run.Stages)-1].Stage
}
