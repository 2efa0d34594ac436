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
// analysis pipeline. This file holds the video-level types: the probed stream
// information, the time-coded scenes and the keyframes selected for them.
package model

import "fmt"

// DefaultFPS is used whenever the container does not report a usable frame rate.
const DefaultFPS = 25.0

// VideoInfo describes the source video as reported by the probe.
type VideoInfo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FrameCount int64   `json:"frame_count"`
	Duration   float64 `json:"duration"`
	HasAudio   bool    `json:"has_audio"`
	VideoCodec string  `json:"video_codec"`
	AudioCodec string  `json:"audio_codec,omitempty"`
	MIMEType   string  `json:"mime_type"`
	FileSize   int64   `json:"file_size"`
}

// Resolution returns the frame size formatted as WIDTHxHEIGHT.
func (v VideoInfo) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// EffectiveFPS returns the probed frame rate or DefaultFPS when it is unknown.
func (v VideoInfo) EffectiveFPS() float64 {
	if v.FPS > 0 {
		return v.FPS
	}
	return DefaultFPS
}

// DeriveDuration applies the frame_count / fps rule. A zero frame rate yields
// a zero duration.
func DeriveDuration(frameCount int64, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frameCount) / fps
}

// Scene is a contiguous time interval of the source video. Scenes are
// immutable once the segmenter hands them to the run.
type Scene struct {
	Index       int     `json:"index"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	SourceIndex int     `json:"source_index"` // position in the detector output before capping
}

// Duration is the length of the scene in seconds.
func (s Scene) Duration() float64 {
	return s.End - s.Start
}

// Midpoint is the timestamp the keyframe for this scene is taken at.
func (s Scene) Midpoint() float64 {
	return (s.Start + s.End) / 2
}

// KeyframeStatus tags the outcome of a single keyframe extraction.
type KeyframeStatus string

const (
	KeyframeExtracted KeyframeStatus = "extracted"
	KeyframeFailed    KeyframeStatus = "failed"
)

// Keyframe is the representative image of a scene. Only extracted keyframes
// are kept on the run; failures are counted but not stored.
type Keyframe struct {
	SceneIndex int            `json:"scene_index"`
	Timestamp  float64        `json:"timestamp"`
	FrameIndex int64          `json:"frame_index"`
	ImageRef   string         `json:"image_ref"`
	Status     KeyframeStatus `json:"status"`
}

// BoundingBox is expressed as [x1, y1, x2, y2] in pixels of the keyframe.
type BoundingBox [4]float64

// DetectedObject is one labelled object returned by the detector.
type DetectedObject struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bounding_box"`
}

// DetectionResult is the detector/captioner output for one keyframe.
type DetectionResult struct {
	SceneIndex int              `json:"scene_index"`
	Timestamp  float64          `json:"timestamp"`
	Caption    string           `json:"caption"`
	Objects    []DetectedObject `json:"objects"`
}
