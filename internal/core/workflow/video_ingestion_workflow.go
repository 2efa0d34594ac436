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
	"log/slog"
	"path/filepath"

	"cloud.google.com/go/storage"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// IngestionOptions wires the ingestion workflow.
type IngestionOptions struct {
	StorageClient *storage.Client
	Analyzer      commands.Analyzer
	// Store records runs in the catalog; optional.
	Store commands.RunStore
	// Exporter writes the run row to BigQuery; optional.
	Exporter commands.RunExporter
	// WorkDir holds the downloads and the run directories.
	WorkDir string
	// OutputBucket receives the artifacts; no upload when empty.
	OutputBucket string
	// OutputPrefix is prepended to the artifact object names. Uploads under
	// it are ignored by the trigger.
	OutputPrefix string
	Config       model.PipelineConfig
	Sink         model.ProgressSink
}

// VideoIngestionWorkflow processes a GCS upload notification end to end.
// It is attached to the upload subscription and receives the raw message
// body under cor.CtxIn.
//
// The chain:
//  1. parses the notification; anything that is not a video ends the chain
//     quietly so the message is acknowledged,
//  2. downloads the object into a temporary directory,
//  3. analyses it into WorkDir/runs/<run id>,
//  4. records the run in the catalog,
//  5. uploads the run directory to the output bucket,
//  6. exports the run to BigQuery.
//
// A failed analysis is still catalogued and exported; only infrastructure
// errors (download, upload, export) leave the message unacknowledged.
type VideoIngestionWorkflow struct {
	cor.BaseCommand
	chain cor.Chain
}

// NewVideoIngestionWorkflow builds the chain from opts.
func NewVideoIngestionWorkflow(opts IngestionOptions, logger *slog.Logger) *VideoIngestionWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	chain := cor.NewBaseChain("video-ingestion")
	chain.AddCommand(commands.NewVideoTriggerReader("video-trigger-reader", opts.OutputPrefix, logger))
	chain.AddCommand(commands.NewGCSToTempFile("gcs-to-temp-file", opts.StorageClient, filepath.Join(opts.WorkDir, "downloads"), logger))
	chain.AddCommand(commands.NewAnalyzeVideo("analyze-video", opts.Analyzer, filepath.Join(opts.WorkDir, "runs"), opts.Config, opts.Sink, logger))
	chain.AddCommand(commands.NewCatalogRecord("catalog-record", opts.Store, logger))
	chain.AddCommand(commands.NewArtifactUpload("artifact-upload", opts.StorageClient, opts.OutputBucket, opts.OutputPrefix, logger))
	if opts.Exporter != nil {
		chain.AddCommand(commands.NewRunPersistToBigQuery("write-to-bigquery", opts.Exporter, logger))
	}

	return &VideoIngestionWorkflow{
		BaseCommand: *cor.NewBaseCommand("video-ingestion-workflow"),
		chain:       chain,
	}
}

// Execute runs the ingestion chain on context.
func (w *VideoIngestionWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}
