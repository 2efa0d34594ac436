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
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/workerpool"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

// JPEGQuality is the encoder quality of storyboard images.
const JPEGQuality = 90

// StoryboardDir is the run-relative directory of the keyframe images.
const StoryboardDir = "storyboard"

// KeyframeName is the deterministic file name of a scene's keyframe.
func KeyframeName(sceneIndex int) string {
	return fmt.Sprintf("scene_%03d.jpg", sceneIndex)
}

// KeyframeFailure records a scene whose keyframe could not be produced.
type KeyframeFailure struct {
	SceneIndex int
	Err        error
}

// KeyframeBatch is the outcome of one Select call.
type KeyframeBatch struct {
	// Keyframes holds the extracted keyframes sorted by scene index.
	Keyframes []model.Keyframe
	Failures  []KeyframeFailure
}

// KeyframeSelector decodes the midpoint frame of every scene on a bounded
// pool of workers. Each worker task opens its own decode handle.
type KeyframeSelector struct {
	decoder media.FrameDecoder
	pool    *workerpool.Pool
	logger  *slog.Logger
}

// NewKeyframeSelector creates a selector running at most workers decodes at
// a time.
func NewKeyframeSelector(decoder media.FrameDecoder, workers int, logger *slog.Logger) *KeyframeSelector {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyframeSelector{
		decoder: decoder,
		pool:    workerpool.New("keyframe_selector", workers),
		logger:  logger.With("component", "keyframe_selector"),
	}
}

// FrameIndex is round(timestamp * fps); a non-positive fps counts as
// model.DefaultFPS.
func FrameIndex(timestamp float64, fps float64) int64 {
	if fps <= 0 {
		fps = model.DefaultFPS
	}
	return int64(math.Round(timestamp * fps))
}

// Select extracts one keyframe per scene into storyboardDir.
//
// Inputs:
//   - ctx: Cancellation is honoured before each scene starts.
//   - videoPath: The source video.
//   - fps: The source frame rate; non-positive means model.DefaultFPS.
//   - scenes: The scenes to sample.
//   - storyboardDir: Output directory for scene_NNN.jpg files.
//   - cache: Optional per-run cache receiving the decoded images.
//
// Outputs:
//   - KeyframeBatch: Extracted keyframes sorted by scene index, plus the
//     failed scenes. A failure never aborts the other scenes.
func (k *KeyframeSelector) Select(ctx context.Context, videoPath string, fps float64, scenes []model.Scene, storyboardDir string, cache *FrameCache) KeyframeBatch {
	if fps <= 0 {
		fps = model.DefaultFPS
	}

	tasks := make([]workerpool.Task[model.Keyframe], len(scenes))
	for i, scene := range scenes {
		scene := scene
		tasks[i] = workerpool.Task[model.Keyframe]{
			ID: scene.Index,
			Run: func(taskCtx context.Context) (model.Keyframe, error) {
				return k.extract(taskCtx, videoPath, fps, scene, storyboardDir, cache)
			},
		}
	}

	batch := KeyframeBatch{Keyframes: make([]model.Keyframe, 0, len(scenes))}
	for _, o := range workerpool.Run(ctx, k.pool, tasks) {
		if o.Err != nil {
			k.logger.Warn("keyframe extraction failed", "scene", o.ID, "error", o.Err)
			batch.Failures = append(batch.Failures, KeyframeFailure{SceneIndex: o.ID, Err: o.Err})
			continue
		}
		batch.Keyframes = append(batch.Keyframes, o.Value)
	}
	return batch
}

func (k *KeyframeSelector) extract(ctx context.Context, videoPath string, fps float64, scene model.Scene, dir string, cache *FrameCache) (model.Keyframe, error) {
	handle, err := k.decoder.Open(ctx, videoPath, fps)
	if err != nil {
		return model.Keyframe{}, fmt.Errorf("open decoder: %w", err)
	}
	defer handle.Release()

	mid := scene.Midpoint()
	frame := FrameIndex(mid, fps)
	if err := handle.Seek(frame); err != nil {
		return model.Keyframe{}, fmt.Errorf("seek to frame %d: %w", frame, err)
	}
	img, err := handle.Decode()
	if err != nil {
		return model.Keyframe{}, err
	}

	path := filepath.Join(dir, KeyframeName(scene.Index))
	if err := WriteFileAtomic(path, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	}); err != nil {
		return model.Keyframe{}, fmt.Errorf("write keyframe: %w", err)
	}
	cache.Put(path, img)

	return model.Keyframe{
		SceneIndex: scene.Index,
		Timestamp:  mid,
		FrameIndex: frame,
		ImageRef:   path,
		Status:     model.KeyframeExtracted,
	}, nil
}
