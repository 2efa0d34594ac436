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

package test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

// FakeProber returns Info or Err.
type FakeProber struct {
	Info model.VideoInfo
	Err  error
}

func (f *FakeProber) Probe(_ context.Context, _ string) (model.VideoInfo, error) {
	return f.Info, f.Err
}

// FakeDetector reports one result per keyframe with Objects objects labelled
// Label, except for scenes listed in Fail.
type FakeDetector struct {
	Label   string
	Objects map[int]int
	Fail    map[int]error
	Calls   int
}

func (f *FakeDetector) Detect(_ context.Context, keyframes []model.Keyframe) ([]model.DetectionResult, error) {
	f.Calls++
	var results []model.DetectionResult
	var errs []error
	for _, kf := range keyframes {
		if err := f.Fail[kf.SceneIndex]; err != nil {
			errs = append(errs, err)
			continue
		}
		r := model.DetectionResult{SceneIndex: kf.SceneIndex, Timestamp: kf.Timestamp, Caption: "a scene", Objects: []model.DetectedObject{}}
		for i := 0; i < f.Objects[kf.SceneIndex]; i++ {
			r.Objects = append(r.Objects, model.DetectedObject{Label: f.Label, Confidence: 0.9})
		}
		results = append(results, r)
	}
	if len(errs) > 0 {
		return results, errs[0]
	}
	return results, nil
}

// FakeAudioExtractor writes a one second 440Hz WAV, or reports Reason.
type FakeAudioExtractor struct {
	T      *testing.T
	Reason string
}

func (f *FakeAudioExtractor) ExtractAudio(_ context.Context, _ string, output string) model.AudioOutcome {
	if f.Reason != "" {
		return model.AudioUnavailable(f.Reason)
	}
	WriteWAV(f.T, output, 16000, SineWave(16000, 1, 440, 0.5))
	return model.AudioExtracted(output)
}

// FakeTranscriber returns Transcript or Err and records the language hints.
type FakeTranscriber struct {
	Transcript model.Transcript
	Err        error
	Languages  []string
}

func (f *FakeTranscriber) Transcribe(_ context.Context, _ string, language string) (model.Transcript, error) {
	f.Languages = append(f.Languages, language)
	return f.Transcript, f.Err
}

// FakeSummarizer returns Insights or Err.
type FakeSummarizer struct {
	Insights model.TextInsights
	Err      error
}

func (f *FakeSummarizer) Name() string {
	return "fake"
}

func (f *FakeSummarizer) Summarize(_ context.Context, _ string, _ string) (model.TextInsights, error) {
	return f.Insights, f.Err
}

// FakeClipMaker writes a small file as the summary video, or reports Reason.
// It records the spans it was asked to cut.
type FakeClipMaker struct {
	Reason   string
	Fallback bool

	mu    sync.Mutex
	Spans []media.ClipSpan
}

func (f *FakeClipMaker) Summarize(_ context.Context, _ string, output string, spans []media.ClipSpan, _ float64) (model.ClipOutcome, bool) {
	f.mu.Lock()
	f.Spans = append([]media.ClipSpan(nil), spans...)
	f.mu.Unlock()
	if f.Reason != "" {
		return model.ClipOutcome{Reason: f.Reason}, f.Fallback
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return model.ClipOutcome{Reason: err.Error()}, f.Fallback
	}
	if err := os.WriteFile(output, []byte("summary"), 0o644); err != nil {
		return model.ClipOutcome{Reason: err.Error()}, f.Fallback
	}
	return model.ClipOutcome{Path: output}, f.Fallback
}

// mp4Header is an ISO base media "ftyp" box, enough for content sniffing.
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2',
}

// WriteFakeMP4 writes a file that sniffs as video/mp4 but holds no streams.
func WriteFakeMP4(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := append(append([]byte{}, mp4Header...), make([]byte, 512)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
