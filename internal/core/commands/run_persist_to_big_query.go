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

	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/services"
)

// RunExporter stores a flattened run.
type RunExporter interface {
	Persist(ctx context.Context, record services.RunRecord) error
}

// RunPersistToBigQuery exports the finished run, with the artifact prefix
// when the artifacts were uploaded.
type RunPersistToBigQuery struct {
	cor.BaseCommand
	exporter RunExporter
	logger   *slog.Logger
}

func NewRunPersistToBigQuery(name string, exporter RunExporter, logger *slog.Logger) *RunPersistToBigQuery {
	if logger == nil {
		logger = slog.Default()
	}
	cmd := &RunPersistToBigQuery{BaseCommand: *cor.NewBaseCommand(name), exporter: exporter, logger: logger.With("command", name)}
	cmd.InputParamName = RunParam
	return cmd
}

func (c *RunPersistToBigQuery) Execute(context cor.Context) {
	run := context.Get(c.GetInputParam()).(*model.PipelineRun)
	prefix, _ := cor.Value[string](context, ArtifactPrefixParam)

	record, err := services.NewRunRecord(run, prefix)
	if err != nil {
		context.AddError(c.GetName(), err)
		return
	}
	if err := c.exporter.Persist(context.GetContext(), record); err != nil {
		context.AddError(c.GetName(), err)
		return
	}
	context.Add(c.GetOutputParam(), run)
}
