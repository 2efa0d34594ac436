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

package analysis

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// SilenceFloorDBFS is reported as the loudness of digital silence.
const SilenceFloorDBFS = -96.0

// Waveform image geometry.
const (
	WaveformWidth  = 1200
	WaveformHeight = 200
	WaveformFile   = "waveform.png"
)

var (
	waveformBackground = color.RGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xff}
	waveformForeground = color.RGBA{R: 0x00, G: 0xd4, B: 0xff, A: 0xff}
	waveformAxis       = color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}
)

// PCM is the decoded content of a WAV file, normalised to [-1, 1] and mixed
// down to mono.
type PCM struct {
	Samples    []float64
	SampleRate int
	Channels   int
	BitDepth   int
}

// ReadWAV decodes a PCM WAV file.
func ReadWAV(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return toPCM(buf, int(dec.SampleRate), int(dec.NumChans), int(dec.BitDepth))
}

func toPCM(buf *audio.IntBuffer, sampleRate, channels, bitDepth int) (*PCM, error) {
	if buf == nil || channels <= 0 || sampleRate <= 0 {
		return nil, errors.New("empty audio buffer")
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	full := math.Pow(2, float64(bitDepth-1))
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = sum / float64(channels) / full
	}
	return &PCM{Samples: samples, SampleRate: sampleRate, Channels: channels, BitDepth: bitDepth}, nil
}

// Duration in seconds.
func (p *PCM) Duration() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// Loudness returns the RMS level in dBFS and the peak amplitude in [0, 1].
func (p *PCM) Loudness() (dbfs float64, peak float64) {
	if len(p.Samples) == 0 {
		return SilenceFloorDBFS, 0
	}
	var sumSq float64
	for _, s := range p.Samples {
		sumSq += s * s
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sumSq / float64(len(p.Samples)))
	if rms == 0 {
		return SilenceFloorDBFS, peak
	}
	return math.Max(SilenceFloorDBFS, 20*math.Log10(rms)), peak
}

// AudioQualityScore is min(100, sampleRate/16000*50 + |dBFS|/60*50).
func AudioQualityScore(sampleRate int, dbfs float64) int {
	score := int(float64(sampleRate)/16000*50 + math.Abs(dbfs)/60*50)
	if score > 100 {
		return 100
	}
	return score
}

// MeasureAudio computes the audio properties of the WAV at path.
func MeasureAudio(path string) (model.AudioProperties, *PCM, error) {
	pcm, err := ReadWAV(path)
	if err != nil {
		return model.AudioProperties{}, nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return model.AudioProperties{}, nil, err
	}
	dbfs, peak := pcm.Loudness()
	return model.AudioProperties{
		Duration:     round2(pcm.Duration()),
		SampleRate:   pcm.SampleRate,
		Channels:     pcm.Channels,
		BitDepth:     pcm.BitDepth,
		LoudnessDBFS: round2(dbfs),
		MaxAmplitude: round2(peak),
		FileSizeMB:   round2(float64(st.Size()) / (1024 * 1024)),
		QualityScore: AudioQualityScore(pcm.SampleRate, dbfs),
	}, pcm, nil
}

// RenderWaveform draws the min/max envelope of pcm, one column per bucket
// of samples.
func RenderWaveform(pcm *PCM, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = waveformBackground.R, waveformBackground.G, waveformBackground.B, waveformBackground.A
	}
	mid := height / 2
	for x := 0; x < width; x++ {
		img.SetRGBA(x, mid, waveformAxis)
	}
	if pcm == nil || len(pcm.Samples) == 0 {
		return img
	}

	bucket := float64(len(pcm.Samples)) / float64(width)
	half := float64(height-1) / 2
	for x := 0; x < width; x++ {
		from := int(float64(x) * bucket)
		to := int(float64(x+1) * bucket)
		if to <= from {
			to = from + 1
		}
		if to > len(pcm.Samples) {
			to = len(pcm.Samples)
		}
		if from >= to {
			continue
		}
		lo, hi := 1.0, -1.0
		for _, s := range pcm.Samples[from:to] {
			lo = math.Min(lo, s)
			hi = math.Max(hi, s)
		}
		top := int(math.Round(half - hi*half))
		bottom := int(math.Round(half - lo*half))
		for y := top; y <= bottom; y++ {
			if y >= 0 && y < height {
				img.SetRGBA(x, y, waveformForeground)
			}
		}
	}
	return img
}

// WriteWaveform renders pcm to a PNG at path.
func WriteWaveform(pcm *PCM, path string) error {
	img := RenderWaveform(pcm, WaveformWidth, WaveformHeight)
	return WriteFileAtomic(path, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
