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

package analysis_test

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	test "github.com/jaycherian/gcp-go-video-insight/internal/testutil"
)

func TestMeasureAudioSine(t *testing.T) {
	path := test.WriteWAV(t, filepath.Join(t.TempDir(), "audio.wav"), 16000, test.SineWave(16000, 2, 440, 0.5))

	props, pcm, err := analysis.MeasureAudio(path)
	require.NoError(t, err)
	require.NotNil(t, pcm)

	assert.Equal(t, 2.0, props.Duration)
	assert.Equal(t, 16000, props.SampleRate)
	assert.Equal(t, 1, props.Channels)
	assert.Equal(t, 16, props.BitDepth)
	assert.InDelta(t, 0.5, props.MaxAmplitude, 0.01)
	assert.InDelta(t, -9.03, props.LoudnessDBFS, 0.05)
	assert.Equal(t, 57, props.QualityScore)
	assert.InDelta(t, 0.06, props.FileSizeMB, 0.01)
}

func TestMeasureAudioSilence(t *testing.T) {
	path := test.WriteWAV(t, filepath.Join(t.TempDir(), "silence.wav"), 16000, make([]int, 16000))

	props, _, err := analysis.MeasureAudio(path)
	require.NoError(t, err)
	assert.Equal(t, analysis.SilenceFloorDBFS, props.LoudnessDBFS)
	assert.Zero(t, props.MaxAmplitude)
	assert.Equal(t, 100, props.QualityScore)
}

func TestMeasureAudioRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff header"), 0o644))

	_, _, err := analysis.MeasureAudio(path)
	assert.Error(t, err)
}

func TestAudioQualityScore(t *testing.T) {
	assert.Equal(t, 100, analysis.AudioQualityScore(44100, -20))
	assert.Equal(t, 25, analysis.AudioQualityScore(8000, 0))
	assert.Equal(t, 66, analysis.AudioQualityScore(16000, -20))
}

func TestWriteWaveform(t *testing.T) {
	dir := t.TempDir()
	_, pcm, err := analysis.MeasureAudio(test.WriteWAV(t, filepath.Join(dir, "audio.wav"), 16000, test.SineWave(16000, 1, 220, 0.8)))
	require.NoError(t, err)

	out := filepath.Join(dir, analysis.WaveformFile)
	require.NoError(t, analysis.WriteWaveform(pcm, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, analysis.WaveformWidth, img.Bounds().Dx())
	assert.Equal(t, analysis.WaveformHeight, img.Bounds().Dy())
	background := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA)
	painted := 0
	for x := 0; x < analysis.WaveformWidth; x++ {
		if color.RGBAModel.Convert(img.At(x, 25)).(color.RGBA) != background {
			painted++
		}
	}
	assert.Greater(t, painted, analysis.WaveformWidth/10, "loud samples should reach near the top edge")
}

func TestRenderWaveformEmpty(t *testing.T) {
	img := analysis.RenderWaveform(nil, 100, 20)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, img.RGBAAt(0, 0), img.RGBAAt(99, 0))
}
