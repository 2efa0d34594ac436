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

package report_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/report"
)

func finishedRun(t *testing.T) *model.PipelineRun {
	t.Helper()
	dir := t.TempDir()
	run := model.NewPipelineRun("run42", "/videos/beach.mp4", dir, model.DefaultPipelineConfig())
	run.VideoInfo = model.VideoInfo{Width: 1280, Height: 720, FPS: 25, FrameCount: 250, Duration: 10, HasAudio: true, VideoCodec: "h264", AudioCodec: "aac", MIMEType: "video/mp4", FileSize: 2 * 1024 * 1024}
	run.Scenes = []model.Scene{{Index: 0, Start: 0, End: 5}, {Index: 1, Start: 5, End: 10, SourceIndex: 1}}
	run.Keyframes = []model.Keyframe{
		{SceneIndex: 0, Timestamp: 2.5, FrameIndex: 63, ImageRef: filepath.Join(dir, "storyboard", "scene_000.jpg"), Status: model.KeyframeExtracted},
		{SceneIndex: 1, Timestamp: 7.5, FrameIndex: 188, ImageRef: filepath.Join(dir, "storyboard", "scene_001.jpg"), Status: model.KeyframeExtracted},
	}
	run.Detections = []model.DetectionResult{{SceneIndex: 1, Timestamp: 7.5, Caption: "A dog runs on the sand.", Objects: []model.DetectedObject{{Label: "dog", Confidence: 0.9}}}}
	run.Transcript = model.Transcript{Text: "What a day at the beach.", Segments: []model.TranscriptSegment{}, DetectedLanguage: "en-US", Confidence: 0.85, Status: model.TranscriptSuccess}
	run.Moderation = &model.ModerationReport{Findings: []model.ModerationFinding{}, Rating: "Safe", Recommendation: "Content is suitable for general audiences", IsSafe: true}
	run.Quality = &model.QualityReport{Resolution: "1280x720", ResolutionTier: "HD", FPS: 25, FPSTier: "Standard", Score: 70, Rating: "Good"}
	run.RecordStage(model.StageResult{Stage: "metadata", Status: model.StageCompleted, DurationMs: 12})
	run.StartedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	run.Finish(nil)
	run.FinishedAt = time.Date(2024, 5, 1, 10, 0, 3, 0, time.UTC)
	run.ProcessingTime = 3
	return run
}

func TestRenderIsDeterministic(t *testing.T) {
	run := finishedRun(t)
	first, err := report.Render(run)
	require.NoError(t, err)
	second, err := report.Render(run)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderAnalysisRoundTrips(t *testing.T) {
	run := finishedRun(t)
	rendered, err := report.Render(run)
	require.NoError(t, err)

	var decoded model.PipelineRun
	require.NoError(t, json.Unmarshal(rendered.Analysis, &decoded))
	assert.Equal(t, run.ID, decoded.ID)
	assert.Equal(t, run.Scenes, decoded.Scenes)
	assert.Equal(t, model.StateDone, decoded.State)
	assert.True(t, decoded.Success)
	assert.True(t, strings.HasPrefix(string(rendered.Analysis), "{\n  \"id\": \"run42\""))
}

func TestBuildMetadata(t *testing.T) {
	md := report.BuildMetadata(finishedRun(t))

	require.Len(t, md.Keyframes, 2)
	assert.Equal(t, report.KeyframeEntry{SceneIndex: 1, Timestamp: 7.5, SceneStart: 5, SceneEnd: 10, Image: "storyboard/scene_001.jpg"}, md.Keyframes[1])
	assert.Equal(t, 2, md.SceneCount)
	assert.Equal(t, 3.0, md.ProcessingTime)
}

func TestSummaryText(t *testing.T) {
	text := report.SummaryText(finishedRun(t))

	for _, want := range []string{
		"AI VIDEO ANALYSIS REPORT",
		"VIDEO INFORMATION",
		"beach.mp4",
		"1280x720",
		"Scene 1: 0.0s - 5.0s (5.0s)",
		"Scene 2: 5.0s - 10.0s (5.0s)",
		"Caption: A dog runs on the sand.",
		"dog (0.90)",
		"What a day at the beach.",
		"Content is suitable for general audiences",
		"Good (70/100)",
	} {
		assert.Contains(t, text, want)
	}
}

func TestSummaryTextFailedRun(t *testing.T) {
	run := model.NewPipelineRun("bad", "/videos/missing.mp4", t.TempDir(), model.DefaultPipelineConfig())
	run.Finish(assert.AnError)

	text := report.SummaryText(run)
	assert.Contains(t, text, "failed: "+assert.AnError.Error())
	assert.Contains(t, text, "No scenes.")
	assert.Contains(t, text, "Not performed.")
}

func TestAssembleWritesArtifacts(t *testing.T) {
	run := finishedRun(t)

	artifacts, err := report.Assemble(run)
	require.NoError(t, err)
	assert.Equal(t, report.AnalysisFile, artifacts.AnalysisJSON)
	assert.Equal(t, report.MetadataFile, artifacts.MetadataJSON)
	assert.Equal(t, report.SummaryFile, artifacts.SummaryText)

	entries, err := os.ReadDir(run.OutputDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"analysis.json", "metadata.json", "summary.txt"}, names)

	data, err := os.ReadFile(filepath.Join(run.OutputDir, report.AnalysisFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"analysis_json\": \"analysis.json\"")
}

func TestAssembleFailsOnUnwritableDir(t *testing.T) {
	run := finishedRun(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	run.OutputDir = filepath.Join(blocker, "sub")

	_, err := report.Assemble(run)
	assert.Error(t, err)
}
