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

package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-video-insight/internal/testutil"
)

type countingAnalyzer struct {
	calls int
}

func (a *countingAnalyzer) RunWithID(_ context.Context, id string, videoPath string, outputDir string, cfg model.PipelineConfig, _ model.ProgressSink) *model.PipelineRun {
	a.calls++
	run := model.NewPipelineRun(id, videoPath, outputDir, cfg)
	run.Finish(nil)
	return run
}

func TestIngestionAcknowledgesNonVideoUploads(t *testing.T) {
	analyzer := &countingAnalyzer{}
	ingestion := workflow.NewVideoIngestionWorkflow(workflow.IngestionOptions{
		Analyzer:     analyzer,
		WorkDir:      t.TempDir(),
		OutputPrefix: "video-insight/",
		Config:       model.DefaultPipelineConfig(),
	}, nil)
	tracer := otel.Tracer("workflow-test")

	acked := false
	ok := cloud.HandleMessage(context.Background(), tracer, ingestion, "1", []byte(test.GetTestImageMessageText()), func() { acked = true })

	assert.True(t, ok)
	assert.True(t, acked)
	assert.Zero(t, analyzer.calls)
}

func TestIngestionLeavesMalformedMessagesUnacknowledged(t *testing.T) {
	ingestion := workflow.NewVideoIngestionWorkflow(workflow.IngestionOptions{
		Analyzer: &countingAnalyzer{},
		WorkDir:  t.TempDir(),
	}, nil)

	acked := false
	ok := cloud.HandleMessage(context.Background(), otel.Tracer("workflow-test"), ingestion, "2", []byte("{"), func() { acked = true })

	assert.False(t, ok)
	assert.False(t, acked)
}
