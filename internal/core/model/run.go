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

// Package model defines the data structures shared by every stage of the video
// analysis pipeline. This file defines PipelineRun, the aggregate root of a
// single invocation, together with the configuration toggles and the per-stage
// bookkeeping records.
//
// A PipelineRun is created when the orchestrator starts, is mutated only by
// the orchestrator's stage commands, and is treated as immutable once it reaches
// a terminal state. Every optional stage field is initialised to a well-defined
// empty value so the persisted report never has missing keys.
package model

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scene threshold bounds and defaults for PipelineConfig.
const (
	DefaultSceneThreshold  = 27.0
	MinSceneThreshold      = 10.0
	MaxSceneThreshold      = 50.0
	DefaultMaxScenes       = 20
	DefaultKeyframeWorkers = 4
	AutoLanguage           = "auto"
)

// PipelineConfig enumerates the run toggles.
type PipelineConfig struct {
	SceneThreshold      float64 `json:"scene_threshold" toml:"scene_threshold"`
	MaxScenes           int     `json:"max_scenes" toml:"max_scenes"`
	Language            string  `json:"language" toml:"language"`
	UseGPU              bool    `json:"use_gpu" toml:"use_gpu"`
	EnableDetection     bool    `json:"enable_detection" toml:"enable_detection"`
	EnableTranscription bool    `json:"enable_transcription" toml:"enable_transcription"`
	EnableSummarization bool    `json:"enable_summarization" toml:"enable_summarization"`
	EnableModeration    bool    `json:"enable_moderation" toml:"enable_moderation"`
	EnableQuality       bool    `json:"enable_quality" toml:"enable_quality"`
	EnableSummaryVideo  bool    `json:"enable_summary_video" toml:"enable_summary_video"`
	KeyframeWorkers     int     `json:"keyframe_workers" toml:"keyframe_workers"`
}

// DefaultPipelineConfig returns a configuration with every stage enabled.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		SceneThreshold:      DefaultSceneThreshold,
		MaxScenes:           DefaultMaxScenes,
		Language:            AutoLanguage,
		EnableDetection:     true,
		EnableTranscription: true,
		EnableSummarization: true,
		EnableModeration:    true,
		EnableQuality:       true,
		EnableSummaryVideo:  true,
		KeyframeWorkers:     DefaultKeyframeWorkers,
	}
}

// Normalize fills zero values with defaults and clamps the threshold.
func (c PipelineConfig) Normalize() PipelineConfig {
	if c.SceneThreshold == 0 {
		c.SceneThreshold = DefaultSceneThreshold
	}
	c.SceneThreshold = ClampThreshold(c.SceneThreshold)
	if c.MaxScenes <= 0 {
		c.MaxScenes = DefaultMaxScenes
	}
	if c.KeyframeWorkers <= 0 {
		c.KeyframeWorkers = DefaultKeyframeWorkers
	}
	if strings.TrimSpace(c.Language) == "" {
		c.Language = AutoLanguage
	}
	return c
}

// ClampThreshold bounds a scene sensitivity to [MinSceneThreshold, MaxSceneThreshold].
// NaN maps to DefaultSceneThreshold.
func ClampThreshold(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultSceneThreshold
	}
	if v < MinSceneThreshold {
		return MinSceneThreshold
	}
	if v > MaxSceneThreshold {
		return MaxSceneThreshold
	}
	return v
}

// RunState is the position of a run in the stage state machine.
type RunState string

const (
	StateInit               RunState = "Init"
	StateMetadataExtracted  RunState = "MetadataExtracted"
	StateScenesDetected     RunState = "ScenesDetected"
	StateKeyframesExtracted RunState = "KeyframesExtracted"
	StateDetected           RunState = "Detected"
	StateAudioExtracted     RunState = "AudioExtracted"
	StateTranscribed        RunState = "Transcribed"
	StateSummarized         RunState = "Summarized"
	StateModerated          RunState = "Moderated"
	StateQualityScored      RunState = "QualityScored"
	StateReportPersisted    RunState = "ReportPersisted"
	StateDone               RunState = "Done"
	StateFailed             RunState = "Failed"
)

// StageStatus tags how a stage ended.
type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageSkipped   StageStatus = "skipped"
	StageDegraded  StageStatus = "degraded"
	StageFailed    StageStatus = "failed"
)

// StageResult is the per-stage bookkeeping record kept in execution order.
type StageResult struct {
	Stage      string      `json:"stage"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// Artifacts lists the files a successful run produced, relative to OutputDir.
type Artifacts struct {
	Storyboard   []string `json:"storyboard"`
	AnalysisJSON string   `json:"analysis_json,omitempty"`
	MetadataJSON string   `json:"metadata_json,omitempty"`
	SummaryText  string   `json:"summary_text,omitempty"`
	Audio        string   `json:"audio,omitempty"`
	Waveform     string   `json:"waveform,omitempty"`
	SummaryVideo string   `json:"summary_video,omitempty"`
}

// PipelineRun is the aggregate root of one analysis invocation.
type PipelineRun struct {
	ID               string            `json:"id"`
	VideoPath        string            `json:"video_path"`
	OutputDir        string            `json:"output_dir"`
	Config           PipelineConfig    `json:"config"`
	State            RunState          `json:"state"`
	VideoInfo        VideoInfo         `json:"video_info"`
	Scenes           []Scene           `json:"scenes"`
	SceneFallback    bool              `json:"scene_fallback"`
	Keyframes        []Keyframe        `json:"keyframes"`
	KeyframeFailures int               `json:"keyframe_failures"`
	Detections       []DetectionResult `json:"detections"`
	Audio            AudioReport       `json:"audio"`
	Transcript       Transcript        `json:"transcript"`
	Summary          TextInsights      `json:"summary"`
	Moderation       *ModerationReport `json:"moderation"`
	Quality          *QualityReport    `json:"quality"`
	SummaryVideo     *SummaryVideo     `json:"summary_video"`
	Artifacts        Artifacts         `json:"artifacts"`
	Stages           []StageResult     `json:"stages"`
	Success          bool              `json:"success"`
	Error            string            `json:"error,omitempty"`
	ProcessingTime   float64           `json:"processing_time"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
}

// NewRunID returns the short session identifier used for run directories.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewPipelineRun creates a run in the Init state with every stage field
// holding its empty value.
//
// Inputs:
//   - id: The run identifier; a new one is generated when empty.
//   - videoPath: The source video.
//   - outputDir: The directory the run writes its artifacts into.
//   - config: The stage toggles, normalised before being stored.
//
// Outputs:
//   - *PipelineRun: The new run.
func NewPipelineRun(id string, videoPath string, outputDir string, config PipelineConfig) *PipelineRun {
	if id == "" {
		id = NewRunID()
	}
	return &PipelineRun{
		ID:         id,
		VideoPath:  videoPath,
		OutputDir:  outputDir,
		Config:     config.Normalize(),
		State:      StateInit,
		Scenes:     []Scene{},
		Keyframes:  []Keyframe{},
		Detections: []DetectionResult{},
		Transcript: EmptyTranscript(TranscriptSkipped, ""),
		Summary:    EmptyTextInsights(),
		Artifacts:  Artifacts{Storyboard: []string{}},
		Stages:     []StageResult{},
		StartedAt:  time.Now().UTC(),
	}
}

// RecordStage appends a stage result.
func (r *PipelineRun) RecordStage(result StageResult) {
	r.Stages = append(r.Stages, result)
}

// Stage returns the recorded result for a stage, if any.
func (r *PipelineRun) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// SceneByIndex looks up a scene by its dense index.
func (r *PipelineRun) SceneByIndex(index int) (Scene, bool) {
	if index < 0 || index >= len(r.Scenes) {
		return Scene{}, false
	}
	return r.Scenes[index], true
}

// Finish moves the run to its terminal state and records processing time.
// A finish time recorded earlier, by the report stage, is kept. It is a no-op
// on a run that already finished.
func (r *PipelineRun) Finish(fatal error) {
	if r.State == StateDone || r.State == StateFailed {
		return
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	r.ProcessingTime = r.FinishedAt.Sub(r.StartedAt).Seconds()
	if r.ProcessingTime < 0 {
		r.ProcessingTime = 0
	}
	if fatal != nil {
		r.Success = false
		r.Error = fatal.Error()
		r.State = StateFailed
		return
	}
	r.Success = true
	r.State = StateDone
}

// IsTerminal reports whether the run reached Done or Failed.
func (r *PipelineRun) IsTerminal() bool {
	return r.State == StateDone || r.State == StateFailed
}
