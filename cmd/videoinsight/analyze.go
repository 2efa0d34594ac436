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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/jaycherian/gcp-go-video-insight/internal/api"
	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/workflow"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze a video file",
		ArgsUsage: "VIDEO_FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: <work_dir>/runs/<run id>)",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Scene change sensitivity, 10 (sensitive) to 50",
			},
			&cli.IntFlag{
				Name:  "max-scenes",
				Usage: "Maximum number of scenes kept",
			},
			&cli.StringFlag{
				Name:  "language",
				Usage: "Spoken language as a BCP-47 tag, or auto",
			},
			&cli.StringSliceFlag{
				Name:  "disable",
				Usage: "Stage to skip: detection, transcription, summarization, moderation, quality or summary_video",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent keyframe decoders",
			},
			&cli.BoolFlag{
				Name:  "no-catalog",
				Usage: "Do not record the run in the catalog",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Hide the progress bar",
			},
		},
		Action: analyzeAction,
	}
}

// pipelineConfig applies the analyze flags on top of the configured defaults.
func pipelineConfig(c *cli.Context, base model.PipelineConfig) (model.PipelineConfig, error) {
	cfg := base
	if c.IsSet("threshold") {
		cfg.SceneThreshold = c.Float64("threshold")
	}
	if c.IsSet("max-scenes") {
		cfg.MaxScenes = c.Int("max-scenes")
	}
	if c.IsSet("language") {
		cfg.Language = c.String("language")
	}
	if c.IsSet("workers") {
		cfg.KeyframeWorkers = c.Int("workers")
	}
	for _, stage := range c.StringSlice("disable") {
		if err := api.DisableStage(&cfg, stage); err != nil {
			return cfg, err
		}
	}
	return cfg.Normalize(), nil
}

func analyzeAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: VIDEO_FILE")
	}
	videoPath, err := filepath.Abs(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("error resolving path: %w", err)
	}

	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c, config)
	cfg, err := pipelineConfig(c, config.Pipeline)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var models workflow.ModelSource
	if needsCloud(config.Backends) {
		clients, err := cloud.NewCloudServiceClients(ctx, config)
		if err != nil {
			return err
		}
		defer clients.Close()
		models = clients
	}

	executor, err := media.New(logger, config.Media)
	if err != nil {
		return err
	}
	collaborators, err := workflow.NewCollaborators(config, models, executor, logger)
	if err != nil {
		return err
	}
	analysis, err := workflow.NewVideoAnalysisWorkflow(collaborators, logger)
	if err != nil {
		return err
	}

	id := model.NewRunID()
	outputDir := c.String("out")
	if outputDir == "" {
		outputDir = filepath.Join(config.Application.WorkDir, "runs", id)
	}

	var sink model.ProgressSink
	var bar *progressSink
	if !c.Bool("quiet") {
		bar = newProgressSink(c.App.ErrWriter)
		sink = bar
	}
	run := analysis.RunWithID(ctx, id, videoPath, outputDir, cfg, sink)
	if bar != nil {
		bar.Close()
	}

	if !c.Bool("no-catalog") {
		if store, err := openCatalog(c, config, logger); err != nil {
			logger.Warn("catalog unavailable; run not recorded", "error", err)
		} else {
			if err := store.Save(ctx, run); err != nil {
				logger.Warn("failed to record run", "run_id", run.ID, "error", err)
			}
			_ = store.Close()
		}
	}

	printRun(c.App.Writer, run)
	if !run.Success {
		return fmt.Errorf("analysis failed: %s", run.Error)
	}
	return nil
}
