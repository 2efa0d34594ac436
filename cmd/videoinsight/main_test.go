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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/urfave/cli/v2"

	"github.com/jaycherian/gcp-go-video-insight/internal/catalog"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/report"
)

type MainTestSuite struct {
	suite.Suite
	tempDir   string
	configDir string
	dsn       string
}

func TestMainTestSuite(t *testing.T) {
	suite.Run(t, new(MainTestSuite))
}

func (s *MainTestSuite) SetupSuite() {
	originalNoColor := color.NoColor
	color.NoColor = true
	s.T().Cleanup(func() {
		color.NoColor = originalNoColor
	})
}

func (s *MainTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.configDir = filepath.Join(s.tempDir, "configs")
	s.Require().NoError(os.MkdirAll(s.configDir, 0o755))
	s.dsn = "file:" + filepath.Join(s.tempDir, "catalog.db")
	config := fmt.Sprintf("[application]\nwork_dir = %q\n\n[catalog]\ndriver = \"sqlite\"\ndsn = %q\n", filepath.Join(s.tempDir, "work"), s.dsn)
	s.Require().NoError(os.WriteFile(filepath.Join(s.configDir, ".env.toml"), []byte(config), 0o644))
}

// run executes the app with args and returns its standard output.
func (s *MainTestSuite) run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"videoinsight", "--config-dir", s.configDir, "--runtime", "test"}, args...))
	return out.String(), err
}

func sampleRun(id string, started time.Time) *model.PipelineRun {
	run := model.NewPipelineRun(id, "/videos/"+id+".mp4", "/out/"+id, model.DefaultPipelineConfig())
	run.StartedAt = started
	run.VideoInfo = model.VideoInfo{Width: 1280, Height: 720, FPS: 25, FrameCount: 250, Duration: 10}
	run.Scenes = []model.Scene{{Index: 0, Start: 0, End: 5}, {Index: 1, Start: 5, End: 10, SourceIndex: 1}}
	run.Keyframes = []model.Keyframe{{SceneIndex: 0, Timestamp: 2.5, FrameIndex: 63, ImageRef: "storyboard/scene_000.jpg", Status: model.KeyframeExtracted}}
	run.Moderation = &model.ModerationReport{Findings: []model.ModerationFinding{}, Rating: model.RatingSafe, IsSafe: true}
	run.Quality = &model.QualityReport{Score: 72, Rating: "Good"}
	run.Finish(nil)
	return run
}

func (s *MainTestSuite) TestRunsListsCatalog() {
	store, err := catalog.Open(context.Background(), catalog.DriverSQLite, s.dsn, nil)
	s.Require().NoError(err)
	s.Require().NoError(store.Save(context.Background(), sampleRun("first", time.Now().Add(-time.Hour))))
	failed := sampleRun("second", time.Now())
	failed.State = model.StateInit
	failed.Finish(fmt.Errorf("no video stream"))
	s.Require().NoError(store.Save(context.Background(), failed))
	s.Require().NoError(store.Close())

	out, err := s.run("runs")
	s.Require().NoError(err)
	s.Less(strings.Index(out, "second"), strings.Index(out, "first"))
	s.Contains(out, "2 scenes")
	s.Contains(out, "no video stream")

	out, err = s.run("runs", "--state", "Failed")
	s.Require().NoError(err)
	s.NotContains(out, "first")
}

func (s *MainTestSuite) TestRunsOnEmptyCatalog() {
	out, err := s.run("runs")
	s.Require().NoError(err)
	s.Contains(out, "No runs found.")
}

func (s *MainTestSuite) TestReportFromFile() {
	run := sampleRun("fromfile", time.Now())
	data, err := json.Marshal(run)
	s.Require().NoError(err)
	path := filepath.Join(s.tempDir, "analysis.json")
	s.Require().NoError(os.WriteFile(path, data, 0o644))

	out, err := s.run("report", "--file", path)
	s.Require().NoError(err)
	decoded, err := readRunFile(path)
	s.Require().NoError(err)
	s.Equal(report.SummaryText(decoded), out)

	out, err = s.run("report", "--file", path, "--json")
	s.Require().NoError(err)
	s.Contains(out, `"id": "fromfile"`)
}

func (s *MainTestSuite) TestReportFromCatalog() {
	store, err := catalog.Open(context.Background(), catalog.DriverSQLite, s.dsn, nil)
	s.Require().NoError(err)
	s.Require().NoError(store.Save(context.Background(), sampleRun("stored", time.Now())))
	s.Require().NoError(store.Close())

	out, err := s.run("report", "stored")
	s.Require().NoError(err)
	s.Contains(out, "stored")

	_, err = s.run("report", "missing")
	s.ErrorIs(err, catalog.ErrNotFound)
	_, err = s.run("report")
	s.ErrorContains(err, "RUN_ID")
}

func (s *MainTestSuite) TestAnalyzeNeedsVideo() {
	_, err := s.run("analyze")
	s.ErrorContains(err, "VIDEO_FILE")
}

func TestPipelineConfigFlags(t *testing.T) {
	var got model.PipelineConfig
	var gotErr error
	app := &cli.App{
		Flags: analyzeCommand().Flags,
		Action: func(c *cli.Context) error {
			got, gotErr = pipelineConfig(c, model.DefaultPipelineConfig())
			return nil
		},
	}

	require.NoError(t, app.Run([]string{"x", "--threshold", "80", "--max-scenes", "5", "--language", "es-ES", "--disable", "detection", "--disable", "summary_video"}))
	require.NoError(t, gotErr)
	require.Equal(t, model.MaxSceneThreshold, got.SceneThreshold)
	require.Equal(t, 5, got.MaxScenes)
	require.Equal(t, "es-ES", got.Language)
	require.False(t, got.EnableDetection)
	require.False(t, got.EnableSummaryVideo)
	require.True(t, got.EnableTranscription)

	require.NoError(t, app.Run([]string{"x", "--disable", "scenes"}))
	require.Error(t, gotErr)
}

func TestPrintRun(t *testing.T) {
	color.NoColor = true
	run := sampleRun("printed", time.Now())
	run.KeyframeFailures = 1
	run.Artifacts.SummaryText = "summary.txt"
	run.RecordStage(model.StageResult{Stage: "keyframes", Status: model.StageDegraded, Error: "1 of 2 keyframes failed"})

	var buf bytes.Buffer
	printRun(&buf, run)
	out := buf.String()
	for _, want := range []string{"Run printed", "Analysis complete", "1280x720", "2 scenes", "extracted 1 keyframe\n", "1 keyframe could not be decoded", "Safe", "72/100", "Stage keyframes degraded", "/out/printed"} {
		require.Contains(t, out, want)
	}
}

func TestProgressSink(t *testing.T) {
	var buf bytes.Buffer
	sink := newProgressSink(&buf)
	sink.Report(model.Progress{Stage: "scenes", Fraction: 0.5})
	sink.Close()
	require.Contains(t, buf.String(), "50")
	require.Contains(t, buf.String(), "scenes")
}
