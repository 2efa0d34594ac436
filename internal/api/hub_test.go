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

package api_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insight/internal/api"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

func TestHubDeliversPerRun(t *testing.T) {
	hub := api.NewHub()
	a, stopA := hub.Subscribe("a")
	b, stopB := hub.Subscribe("b")
	defer stopB()

	hub.Report(model.Progress{RunID: "a", Stage: "scenes"})
	got := <-a
	assert.Equal(t, "scenes", got.Stage)
	assert.Empty(t, b)

	stopA()
	stopA()
	_, open := <-a
	assert.False(t, open)
}

func TestHubReplaysLastAndNeverBlocks(t *testing.T) {
	hub := api.NewHub()
	ch, stop := hub.Subscribe("run")
	defer stop()

	for i := 0; i < 100; i++ {
		hub.Report(model.Progress{RunID: "run", Fraction: float64(i) / 100})
	}
	last, ok := hub.Last("run")
	require.True(t, ok)
	assert.Equal(t, 0.99, last.Fraction)
	assert.NotEmpty(t, ch)

	late, stopLate := hub.Subscribe("run")
	defer stopLate()
	assert.Equal(t, 0.99, (<-late).Fraction)

	hub.Forget("run")
	_, ok = hub.Last("run")
	assert.False(t, ok)
}

func TestArtifactPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	cases := map[string]string{
		"summary.txt":                 filepath.Join(dir, "summary.txt"),
		"/storyboard/scene_001.jpg":   filepath.Join(dir, "storyboard", "scene_001.jpg"),
		"../../etc/passwd":            filepath.Join(dir, "etc", "passwd"),
		"storyboard/../analysis.json": filepath.Join(dir, "analysis.json"),
	}
	for name, want := range cases {
		got, err := api.ArtifactPath(dir, name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := api.ArtifactPath(dir, "/")
	assert.Error(t, err)
}

func TestDisableStage(t *testing.T) {
	cfg := model.DefaultPipelineConfig()
	require.NoError(t, api.DisableStage(&cfg, "transcription"))
	require.NoError(t, api.DisableStage(&cfg, "quality"))
	assert.False(t, cfg.EnableTranscription)
	assert.False(t, cfg.EnableQuality)
	assert.True(t, cfg.EnableDetection)
	assert.Error(t, api.DisableStage(&cfg, "report"))
}
