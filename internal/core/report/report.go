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

// Package report turns a finished PipelineRun into the three report
// artifacts of a run directory: analysis.json (the whole run), metadata.json
// (video information and the storyboard index) and summary.txt (a human
// readable digest).
//
// Render is pure: the same run always renders to the same bytes. Assemble
// records the artifact names on the run, renders and writes every file
// atomically.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Artifact file names, relative to the run output directory.
const (
	AnalysisFile = "analysis.json"
	MetadataFile = "metadata.json"
	SummaryFile  = "summary.txt"
)

// Rendered holds the encoded report files.
type Rendered struct {
	Analysis []byte
	Metadata []byte
	Summary  []byte
}

// KeyframeEntry is one storyboard entry of metadata.json.
type KeyframeEntry struct {
	SceneIndex int     `json:"scene_idx"`
	Timestamp  float64 `json:"timestamp"`
	SceneStart float64 `json:"scene_start"`
	SceneEnd   float64 `json:"scene_end"`
	Image      string  `json:"image"`
}

// Metadata is the document written to metadata.json.
type Metadata struct {
	RunID          string          `json:"run_id"`
	VideoPath      string          `json:"video_path"`
	VideoInfo      model.VideoInfo `json:"video_info"`
	SceneCount     int             `json:"scene_count"`
	Keyframes      []KeyframeEntry `json:"keyframes"`
	ProcessingTime float64         `json:"processing_time"`
	Generated      time.Time       `json:"generated"`
}

// BuildMetadata collects the metadata document of run. Image paths are
// relative to the run directory when possible.
func BuildMetadata(run *model.PipelineRun) Metadata {
	md := Metadata{
		RunID:          run.ID,
		VideoPath:      run.VideoPath,
		VideoInfo:      run.VideoInfo,
		SceneCount:     len(run.Scenes),
		Keyframes:      make([]KeyframeEntry, 0, len(run.Keyframes)),
		ProcessingTime: run.ProcessingTime,
		Generated:      run.FinishedAt,
	}
	for _, kf := range run.Keyframes {
		entry := KeyframeEntry{SceneIndex: kf.SceneIndex, Timestamp: kf.Timestamp, Image: relativeTo(run.OutputDir, kf.ImageRef)}
		if scene, ok := run.SceneByIndex(kf.SceneIndex); ok {
			entry.SceneStart = scene.Start
			entry.SceneEnd = scene.End
		}
		md.Keyframes = append(md.Keyframes, entry)
	}
	return md
}

// Render encodes the three report files of run.
func Render(run *model.PipelineRun) (Rendered, error) {
	analysisJSON, err := marshalIndent(run)
	if err != nil {
		return Rendered{}, fmt.Errorf("failed to encode analysis: %w", err)
	}
	metadataJSON, err := marshalIndent(BuildMetadata(run))
	if err != nil {
		return Rendered{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return Rendered{
		Analysis: analysisJSON,
		Metadata: metadataJSON,
		Summary:  []byte(SummaryText(run)),
	}, nil
}

// Assemble writes the report files into run.OutputDir and returns the
// artifact names. The names are stored on run before rendering so
// analysis.json lists itself.
func Assemble(run *model.PipelineRun) (model.Artifacts, error) {
	run.Artifacts.AnalysisJSON = AnalysisFile
	run.Artifacts.MetadataJSON = MetadataFile
	run.Artifacts.SummaryText = SummaryFile
	if run.Artifacts.Storyboard == nil {
		run.Artifacts.Storyboard = []string{}
	}

	rendered, err := Render(run)
	if err != nil {
		return run.Artifacts, err
	}
	files := []struct {
		name string
		data []byte
	}{
		{AnalysisFile, rendered.Analysis},
		{MetadataFile, rendered.Metadata},
		{SummaryFile, rendered.Summary},
	}
	for _, f := range files {
		data := f.data
		err := analysis.WriteFileAtomic(filepath.Join(run.OutputDir, f.name), func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
		if err != nil {
			return run.Artifacts, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}
	return run.Artifacts, nil
}

func marshalIndent(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func relativeTo(dir, path string) string {
	if dir == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || filepath.IsAbs(rel) || len(rel) >= 2 && rel[:2] == ".." {
		return path
	}
	return filepath.ToSlash(rel)
}
