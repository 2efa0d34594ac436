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
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
	test "github.com/jaycherian/gcp-go-video-insight/internal/testutil"
)

func TestAudioStagesWithoutAudioTrack(t *testing.T) {
	run, chCtx := newRun(t)
	run.VideoInfo.HasAudio = false
	extractor := &test.FakeAudioExtractor{T: t}

	execute(t, commands.NewAudioExtraction(extractor, nil), chCtx)
	execute(t, commands.NewAudioAnalysis(nil), chCtx)
	execute(t, commands.NewTranscription(&test.FakeTranscriber{}, nil), chCtx)

	require.NoError(t, chCtx.Err())
	assert.False(t, run.Audio.Extracted)
	assert.Equal(t, media.ErrNoAudioStream.Error(), run.Audio.Reason)
	assert.Equal(t, model.TranscriptNoAudio, run.Transcript.Status)
	assert.Empty(t, run.Transcript.Text)
	assert.NotNil(t, run.Transcript.Segments)

	statuses := map[string]model.StageStatus{}
	for _, s := range run.Stages {
		statuses[s.Stage] = s.Status
	}
	assert.Equal(t, model.StageSkipped, statuses[commands.StageAudio])
	assert.Equal(t, model.StageSkipped, statuses[commands.StageAudioAnalysis])
	assert.Equal(t, model.StageCompleted, statuses[commands.StageTranscription])
	assert.Equal(t, model.StateTranscribed, run.State)
}

func TestAudioExtractionAndAnalysis(t *testing.T) {
	run, chCtx := newRun(t)

	execute(t, commands.NewAudioExtraction(&test.FakeAudioExtractor{T: t}, nil), chCtx)
	execute(t, commands.NewAudioAnalysis(nil), chCtx)

	require.True(t, run.Audio.Extracted)
	require.NotNil(t, run.Audio.Properties)
	assert.Equal(t, 16000, run.Audio.Properties.SampleRate)
	assert.InDelta(t, 1.0, run.Audio.Properties.Duration, 0.01)
	assert.Equal(t, commands.AudioFile, run.Artifacts.Audio)
	assert.Equal(t, analysis.WaveformFile, run.Artifacts.Waveform)
	assert.FileExists(t, filepath.Join(run.OutputDir, analysis.WaveformFile))
	assert.Equal(t, model.StageCompleted, lastStage(t, run).Status)
}

func TestAudioExtractionFailureDegrades(t *testing.T) {
	run, chCtx := newRun(t)

	execute(t, commands.NewAudioExtraction(&test.FakeAudioExtractor{Reason: "audio extraction failed: exit status 1"}, nil), chCtx)

	assert.False(t, run.Audio.Extracted)
	assert.Equal(t, model.StageDegraded, lastStage(t, run).Status)
	assert.NoError(t, chCtx.Err())
}

func TestTranscription(t *testing.T) {
	t.Run("success passes the language hint", func(t *testing.T) {
		run, chCtx := newRun(t)
		run.Config.Language = "de-DE"
		run.Audio = model.AudioReport{Extracted: true, Path: "audio.wav"}
		transcriber := &test.FakeTranscriber{Transcript: model.Transcript{Text: "Guten Tag.", DetectedLanguage: "de-DE", Confidence: 0.85}}

		execute(t, commands.NewTranscription(transcriber, nil), chCtx)

		assert.Equal(t, []string{"de-DE"}, transcriber.Languages)
		assert.Equal(t, model.TranscriptSuccess, run.Transcript.Status)
		assert.Equal(t, "Guten Tag.", run.Transcript.Text)
		assert.Equal(t, model.StageCompleted, lastStage(t, run).Status)
	})
	t.Run("backend error leaves a placeholder", func(t *testing.T) {
		run, chCtx := newRun(t)
		run.Audio = model.AudioReport{Extracted: true, Path: "audio.wav"}

		execute(t, commands.NewTranscription(&test.FakeTranscriber{Err: errors.New("quota")}, nil), chCtx)

		assert.Equal(t, model.TranscriptError, run.Transcript.Status)
		assert.Equal(t, "quota", run.Transcript.Error)
		assert.Equal(t, model.StageDegraded, lastStage(t, run).Status)
		assert.NoError(t, chCtx.Err())
	})
	t.Run("disabled", func(t *testing.T) {
		run, chCtx := newRun(t)
		run.Config.EnableTranscription = false

		execute(t, commands.NewTranscription(&test.FakeTranscriber{}, nil), chCtx)

		assert.Equal(t, model.TranscriptSkipped, run.Transcript.Status)
		assert.Equal(t, model.StageSkipped, lastStage(t, run).Status)
	})
}

func TestSummarizationFallsBackToExtractive(t *testing.T) {
	run, chCtx := newRun(t)
	run.Transcript = model.Transcript{Text: "The camera is great. The battery lasts all day.", Status: model.TranscriptSuccess}

	execute(t, commands.NewSummarization(&test.FakeSummarizer{Err: errors.New("endpoint down")}, nil), chCtx)

	assert.Equal(t, analysis.ExtractiveBackend, run.Summary.Backend)
	assert.NotEqual(t, model.NoSpeechSummary, run.Summary.Summary)
	stage := lastStage(t, run)
	assert.Equal(t, model.StageDegraded, stage.Status)
	assert.Contains(t, stage.Error, "endpoint down")
}

func TestSummarizationUsesConfiguredBackend(t *testing.T) {
	run, chCtx := newRun(t)
	run.Transcript = model.Transcript{Text: "Hello.", Status: model.TranscriptSuccess}

	execute(t, commands.NewSummarization(&test.FakeSummarizer{Insights: model.TextInsights{Summary: "Greeting."}}, nil), chCtx)

	assert.Equal(t, "Greeting.", run.Summary.Summary)
	assert.Equal(t, "fake", run.Summary.Backend)
	assert.Equal(t, model.StateSummarized, run.State)
}

func TestContentModerationUsesDetectedLanguage(t *testing.T) {
	run, chCtx := newRun(t)
	run.Transcript = model.Transcript{Text: "Voy a matar con la pistola.", DetectedLanguage: "es-ES"}
	lexicon, err := analysis.DefaultLexicon()
	require.NoError(t, err)

	execute(t, commands.NewContentModeration(analysis.NewContentModerationEngine(lexicon, nil), nil), chCtx)

	require.NotNil(t, run.Moderation)
	assert.Equal(t, "es", run.Moderation.ModerationLanguage)
	assert.Greater(t, run.Moderation.SeverityScore, 0)
	assert.Equal(t, model.StateModerated, run.State)
}

func TestQualityScoringDisabled(t *testing.T) {
	run, chCtx := newRun(t)
	run.Config.EnableQuality = false

	execute(t, commands.NewQualityScoring(analysis.NewQualityScorer(nil), nil), chCtx)

	assert.Nil(t, run.Quality)
	assert.Equal(t, model.StageSkipped, lastStage(t, run).Status)
}

func TestSummaryVideo(t *testing.T) {
	run, chCtx := newRun(t)
	run.Scenes = []model.Scene{{Index: 0, Start: 0, End: 4}, {Index: 1, Start: 4, End: 10, SourceIndex: 1}}
	run.Detections = []model.DetectionResult{{SceneIndex: 1, Objects: []model.DetectedObject{{Label: "dog"}}}}
	clips := &test.FakeClipMaker{}

	execute(t, commands.NewSummaryVideo(clips, nil), chCtx)

	require.NotNil(t, run.SummaryVideo)
	assert.Equal(t, []int{0, 1}, run.SummaryVideo.Scenes)
	assert.Equal(t, analysis.SummaryVideoFile, run.Artifacts.SummaryVideo)
	assert.Equal(t, []media.ClipSpan{{Start: 0, End: 4}, {Start: 4, End: 10}}, clips.Spans)
	assert.Equal(t, model.StageCompleted, lastStage(t, run).Status)
}

func TestSummaryVideoFailureDegrades(t *testing.T) {
	run, chCtx := newRun(t)
	run.Scenes = []model.Scene{{Index: 0, Start: 0, End: 10}}

	execute(t, commands.NewSummaryVideo(&test.FakeClipMaker{Reason: "ffmpeg exited 1", Fallback: true}, nil), chCtx)

	require.NotNil(t, run.SummaryVideo)
	assert.True(t, run.SummaryVideo.Fallback)
	assert.Empty(t, run.SummaryVideo.Path)
	assert.Empty(t, run.Artifacts.SummaryVideo)
	assert.Equal(t, model.StageDegraded, lastStage(t, run).Status)
}

func TestReportAssembly(t *testing.T) {
	run, chCtx := newRun(t)
	run.Scenes = []model.Scene{{Index: 0, Start: 0, End: 10}}

	execute(t, commands.NewReportAssembly(nil), chCtx)

	require.NoError(t, chCtx.Err())
	assert.Equal(t, model.StateReportPersisted, run.State)
	assert.False(t, run.IsTerminal())
	assert.Equal(t, "analysis.json", run.Artifacts.AnalysisJSON)

	data, err := os.ReadFile(filepath.Join(run.OutputDir, "analysis.json"))
	require.NoError(t, err)
	var written model.PipelineRun
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, model.StateDone, written.State)
	assert.True(t, written.Success)
	require.NotEmpty(t, written.Stages)
	assert.Equal(t, commands.StageReport, written.Stages[len(written.Stages)-1].Stage)
	assert.FileExists(t, filepath.Join(run.OutputDir, "summary.txt"))
	assert.FileExists(t, filepath.Join(run.OutputDir, "metadata.json"))

	time.Sleep(5 * time.Millisecond)
	run.Finish(nil)
	assert.Equal(t, written.Stages, run.Stages)
	assert.Equal(t, written.ProcessingTime, run.ProcessingTime)
	assert.True(t, written.FinishedAt.Equal(run.FinishedAt), "written %v, returned %v", written.FinishedAt, run.FinishedAt)

	var meta struct {
		ProcessingTime float64 `json:"processing_time"`
	}
	data, err = os.ReadFile(filepath.Join(run.OutputDir, "metadata.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, run.ProcessingTime, meta.ProcessingTime)
}

func TestReportAssemblyFailureIsFatal(t *testing.T) {
	run, chCtx := newRun(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	run.OutputDir = filepath.Join(blocker, "out")

	execute(t, commands.NewReportAssembly(nil), chCtx)

	requireFatal(t, chCtx, commands.StageReport)
}
