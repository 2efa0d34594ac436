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
	"path/filepath"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Analyzer runs the full analysis pipeline on a local video.
type Analyzer interface {
	RunWithID(ctx context.Context, id string, videoPath string, outputDir string, config model.PipelineConfig, sink model.ProgressSink) *model.PipelineRun
}

// RunStore records runs in the catalog.
type RunStore interface {
	Save(ctx context.Context, run *model.PipelineRun) error
}

// AnalyzeVideo analyses the local file in its input into a fresh run
// directory under baseDir, and stores the run under RunParam.
//
// A failed analysis is not a chain error: the run is kept and exported with
// its error, and the trigger message is acknowledged.
type AnalyzeVideo struct {
	cor.BaseCommand
	analyzer Analyzer
	baseDir  string
	config   model.PipelineConfig
	sink     model.ProgressSink
	logger   *slog.Logger
}

func NewAnalyzeVideo(name string, analyzer Analyzer, baseDir string, config model.PipelineConfig, sink model.ProgressSink, logger *slog.Logger) *AnalyzeVideo {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeVideo{
		BaseCommand: *cor.NewBaseCommand(name),
		analyzer:    analyzer,
		baseDir:     baseDir,
		config:      config,
		sink:        sink,
		logger:      logger.With("command", name),
	}
}

func (c *AnalyzeVideo) Execute(context cor.Context) {
	videoPath := context.Get(c.GetInputParam()).(string)
	id := model.NewRunID()

	run := c.analyzer.RunWithID(context.GetContext(), id, videoPath, filepath.Join(c.baseDir, id), c.config, c.sink)
	if !run.Success {
		c.logger.Warn("analysis failed", "run_id", run.ID, "video", videoPath, "error", run.Error)
	}
	context.Add(RunParam, run)
	context.Add(c.GetOutputParam(), run)
}

// CatalogRecord saves the run into the catalog. Catalog errors are logged;
// the exports that follow still run.
type CatalogRecord struct {
	cor.BaseCommand
	store  RunStore
	logger *slog.Logger
}

func NewCatalogRecord(name string, store RunStore, logger *slog.Logger) *CatalogRecord {
	if logger == nil {
		logger = slog.Default()
	}
	cmd := &CatalogRecord{BaseCommand: *cor.NewBaseCommand(name), store: store, logger: logger.With("command", name)}
	cmd.InputParamName = RunParam
	return cmd
}

// IsExecutable also requires a store.
func (c *CatalogRecord) IsExecutable(context cor.Context) bool {
	return c.store != nil && c.BaseCommand.IsExecutable(context)
}

func (c *CatalogRecord) Execute(context cor.Context) {
	run := context.Get(c.GetInputParam()).(*model.PipelineRun)
	if err := c.store.Save(context.GetContext(), run); err != nil {
		c.logger.Error("failed to catalog run", "run_id", run.ID, "error", err)
	}
}
