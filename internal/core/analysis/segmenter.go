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

// Package analysis holds the algorithmic parts of the pipeline: scene
// segmentation, keyframe selection, content moderation, quality scoring, audio
// measurements, extractive text insights and summary clip planning.
//
// Nothing here talks to a model or a cloud service. Video access goes through
// the collaborator interfaces declared next to their consumers, so every
// component can be driven by fakes in tests.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

const (
	// FallbackWindowSeconds is the window length of fixed segmentation.
	FallbackWindowSeconds = 10.0
	// UnknownDurationSceneSeconds is the length of the single scene produced
	// when the video duration is unknown.
	UnknownDurationSceneSeconds = 5.0
	// boundaryEpsilon merges boundaries closer than a millisecond.
	boundaryEpsilon = 1e-3
)

// ErrNoDetector is the fallback reason when no boundary detector is wired.
var ErrNoDetector = errors.New("scene boundary detector unavailable")

// BoundaryDetector finds content-change timestamps in a video.
type BoundaryDetector interface {
	DetectBoundaries(ctx context.Context, videoPath string, threshold float64) ([]float64, error)
}

// Segmentation is the outcome of SceneSegmenter.Segment.
type Segmentation struct {
	Scenes []model.Scene
	// Fallback is set when the scenes did not come from boundary detection.
	Fallback bool
	// Downsampled is set when the scene cap was applied.
	Downsampled bool
	// Err is the detector failure that caused a fallback, if any.
	Err error
}

// SceneSegmenter turns a video into an ordered list of scenes.
type SceneSegmenter struct {
	detector BoundaryDetector
	logger   *slog.Logger
}

// NewSceneSegmenter creates a segmenter. A nil detector always falls back to
// fixed windows.
func NewSceneSegmenter(detector BoundaryDetector, logger *slog.Logger) *SceneSegmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SceneSegmenter{detector: detector, logger: logger.With("component", "scene_segmenter")}
}

// Segment splits videoPath into at most maxScenes scenes. It never fails: any
// detector problem degrades to fixed windows, and an unknown duration yields a
// single scene of UnknownDurationSceneSeconds.
//
// Inputs:
//   - ctx: Passed to the detector.
//   - videoPath: The source video.
//   - duration: The probed duration in seconds; zero when unknown.
//   - threshold: Sensitivity, clamped to [10, 50]. Lower finds more scenes.
//   - maxScenes: Scene cap; non-positive means the default cap.
//
// Outputs:
//   - Segmentation: Dense, ordered, non-overlapping scenes covering [0, duration].
func (s *SceneSegmenter) Segment(ctx context.Context, videoPath string, duration float64, threshold float64, maxScenes int) Segmentation {
	if maxScenes <= 0 {
		maxScenes = model.DefaultMaxScenes
	}
	threshold = model.ClampThreshold(threshold)

	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		s.logger.Warn("unknown video duration, using a single scene", "video", videoPath)
		return Segmentation{
			Scenes:   []model.Scene{{Index: 0, Start: 0, End: UnknownDurationSceneSeconds}},
			Fallback: true,
		}
	}

	var (
		scenes   []model.Scene
		fallback bool
		cause    error
	)
	if s.detector == nil {
		cause = ErrNoDetector
	} else if boundaries, err := s.detector.DetectBoundaries(ctx, videoPath, threshold); err != nil {
		cause = err
	} else {
		scenes = ScenesFromBoundaries(boundaries, duration)
		fallback = len(scenes) == 1
	}
	if cause != nil {
		s.logger.Warn("scene detection unavailable, using fixed windows", "video", videoPath, "error", cause)
		scenes = FixedWindows(duration, FallbackWindowSeconds)
		fallback = true
	}

	capped := Downsample(scenes, maxScenes, duration)
	return Segmentation{
		Scenes:      capped,
		Fallback:    fallback,
		Downsampled: len(capped) < len(scenes),
		Err:         cause,
	}
}

// ScenesFromBoundaries builds the intervals between consecutive boundaries.
// Boundaries outside (0, duration) and near-duplicates are dropped, so zero
// usable boundaries give one scene [0, duration].
func ScenesFromBoundaries(boundaries []float64, duration float64) []model.Scene {
	cleaned := make([]float64, 0, len(boundaries))
	for _, b := range boundaries {
		if b > boundaryEpsilon && b < duration-boundaryEpsilon {
			cleaned = append(cleaned, b)
		}
	}
	sort.Float64s(cleaned)

	cuts := []float64{0}
	for _, b := range cleaned {
		if b-cuts[len(cuts)-1] > boundaryEpsilon {
			cuts = append(cuts, b)
		}
	}
	cuts = append(cuts, duration)

	scenes := make([]model.Scene, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		scenes = append(scenes, model.Scene{Index: i, Start: cuts[i], End: cuts[i+1], SourceIndex: i})
	}
	return scenes
}

// FixedWindows splits [0, duration] into max(1, int(duration/window)) equal
// windows.
func FixedWindows(duration float64, window float64) []model.Scene {
	n := int(duration / window)
	if n < 1 {
		n = 1
	}
	length := duration / float64(n)
	scenes := make([]model.Scene, n)
	for i := range scenes {
		end := float64(i+1) * length
		if i == n-1 {
			end = duration
		}
		scenes[i] = model.Scene{Index: i, Start: float64(i) * length, End: end, SourceIndex: i}
	}
	return scenes
}

// Downsample keeps limit scenes at the evenly spaced indices floor(i*N/limit).
// Every kept scene is stretched to the start of the next kept scene, and the
// last one to the end of the video, so coverage of [0, duration] is
// preserved. Kept scenes are re-indexed densely and remember their original
// index in SourceIndex.
func Downsample(scenes []model.Scene, limit int, duration float64) []model.Scene {
	n := len(scenes)
	if limit <= 0 || n <= limit {
		return scenes
	}
	kept := make([]model.Scene, limit)
	for i := 0; i < limit; i++ {
		src := scenes[i*n/limit]
		kept[i] = model.Scene{Index: i, Start: src.Start, End: src.End, SourceIndex: src.SourceIndex}
	}
	kept[0].Start = 0
	for i := 0; i+1 < limit; i++ {
		kept[i].End = kept[i+1].Start
	}
	kept[limit-1].End = math.Max(scenes[n-1].End, duration)
	return kept
}
