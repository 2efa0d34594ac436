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

package commands_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/services"
	test "github.com/jaycherian/gcp-go-video-insight/internal/testutil"
)

func triggerContext(message string) cor.Context {
	chCtx := cor.NewBaseContextWith(context.Background())
	chCtx.Add(cor.CtxIn, message)
	return chCtx
}

func TestVideoTriggerReader(t *testing.T) {
	reader := commands.NewVideoTriggerReader("trigger", "video-insight/", nil)

	t.Run("video upload", func(t *testing.T) {
		chCtx := triggerContext(test.GetTestUploadMessageText())
		reader.Execute(chCtx)

		require.NoError(t, chCtx.Err())
		obj, ok := cor.Value[*cloud.GCSObject](chCtx, cloud.GetGCSObjectName())
		require.True(t, ok)
		assert.Equal(t, "video_insight_uploads", obj.Bucket)
		assert.Equal(t, "holiday/beach-001.mp4", obj.Name)
		assert.Equal(t, "gs://video_insight_uploads/holiday/beach-001.mp4", obj.URI())
		assert.Same(t, obj, chCtx.Get(cor.CtxOut))
	})
	t.Run("image upload is ignored", func(t *testing.T) {
		chCtx := triggerContext(test.GetTestImageMessageText())
		reader.Execute(chCtx)

		assert.NoError(t, chCtx.Err())
		assert.Nil(t, chCtx.Get(cor.CtxOut))
	})
	t.Run("own artifacts are ignored", func(t *testing.T) {
		chCtx := triggerContext(`{"bucket": "b", "name": "video-insight/run1/summary.mp4", "contentType": "video/mp4"}`)
		reader.Execute(chCtx)

		assert.NoError(t, chCtx.Err())
		assert.Nil(t, chCtx.Get(cor.CtxOut))
	})
	t.Run("malformed notification", func(t *testing.T) {
		chCtx := triggerContext("{not json")
		reader.Execute(chCtx)
		assert.Error(t, chCtx.Err())
	})
	t.Run("missing object name", func(t *testing.T) {
		chCtx := triggerContext(`{"bucket": "b"}`)
		reader.Execute(chCtx)
		assert.Error(t, chCtx.Err())
	})
}

func TestIsVideoObject(t *testing.T) {
	cases := []struct {
		object cloud.GCSObject
		want   bool
	}{
		{cloud.GCSObject{Name: "a.bin", MIMEType: "video/quicktime"}, true},
		{cloud.GCSObject{Name: "a.MOV"}, true},
		{cloud.GCSObject{Name: "a.webm", MIMEType: "application/octet-stream"}, true},
		{cloud.GCSObject{Name: "a.mp4", MIMEType: "image/png"}, false},
		{cloud.GCSObject{Name: "notes.txt"}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, commands.IsVideoObject(&c.object), c.object.Name)
	}
}

type fakeExporter struct {
	records []services.RunRecord
	err     error
}

func (f *fakeExporter) Persist(_ context.Context, record services.RunRecord) error {
	f.records = append(f.records, record)
	return f.err
}

func TestRunPersistToBigQuery(t *testing.T) {
	run, chCtx := newRun(t)
	run.Finish(nil)
	chCtx.Add(commands.ArtifactPrefixParam, "gs://out/video-insight/run1")
	exporter := &fakeExporter{}

	execute(t, commands.NewRunPersistToBigQuery("persist", exporter, nil), chCtx)

	require.NoError(t, chCtx.Err())
	require.Len(t, exporter.records, 1)
	record := exporter.records[0]
	assert.Equal(t, "run1", record.ID)
	assert.True(t, record.Success)
	assert.Equal(t, "gs://out/video-insight/run1", record.ArtifactPrefix)

	decoded, err := record.Run()
	require.NoError(t, err)
	assert.Equal(t, run.ID, decoded.ID)
}

func TestRunPersistToBigQueryError(t *testing.T) {
	run, chCtx := newRun(t)
	run.Finish(nil)

	execute(t, commands.NewRunPersistToBigQuery("persist", &fakeExporter{err: errors.New("insert failed")}, nil), chCtx)

	assert.ErrorContains(t, chCtx.Err(), "insert failed")
}

type fakeAnalyzer struct {
	ids []string
	err error
}

func (f *fakeAnalyzer) RunWithID(_ context.Context, id string, videoPath string, outputDir string, cfg model.PipelineConfig, _ model.ProgressSink) *model.PipelineRun {
	f.ids = append(f.ids, id)
	run := model.NewPipelineRun(id, videoPath, outputDir, cfg)
	run.Finish(f.err)
	return run
}

type fakeStore struct {
	saved []*model.PipelineRun
	err   error
}

func (f *fakeStore) Save(_ context.Context, run *model.PipelineRun) error {
	f.saved = append(f.saved, run)
	return f.err
}

func TestAnalyzeVideoKeepsFailedRuns(t *testing.T) {
	base := t.TempDir()
	analyzer := &fakeAnalyzer{err: errors.New("not a video")}
	chCtx := triggerContext("/tmp/download-1/beach-001.mp4")

	cmd := commands.NewAnalyzeVideo("analyze", analyzer, base, model.DefaultPipelineConfig(), nil, nil)
	cmd.Execute(chCtx)

	require.NoError(t, chCtx.Err())
	require.Len(t, analyzer.ids, 1)
	run, ok := cor.Value[*model.PipelineRun](chCtx, commands.RunParam)
	require.True(t, ok)
	assert.False(t, run.Success)
	assert.Equal(t, model.StateFailed, run.State)
	assert.Equal(t, filepath.Join(base, analyzer.ids[0]), run.OutputDir)
}

func TestCatalogRecord(t *testing.T) {
	run, chCtx := newRun(t)
	store := &fakeStore{err: errors.New("database is locked")}

	execute(t, commands.NewCatalogRecord("catalog", store, nil), chCtx)

	assert.NoError(t, chCtx.Err())
	require.Len(t, store.saved, 1)
	assert.Same(t, run, store.saved[0])
	assert.False(t, commands.NewCatalogRecord("catalog", nil, nil).IsExecutable(chCtx))
}
