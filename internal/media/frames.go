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

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// FrameDecoder opens independent decode contexts on a video. Every handle
// has its own seek position, so one handle must never be shared between
// goroutines.
type FrameDecoder interface {
	Open(ctx context.Context, path string, fps float64) (FrameHandle, error)
}

// FrameHandle is one decode context.
type FrameHandle interface {
	// Seek positions the handle on a frame index.
	Seek(frameIndex int64) error
	// Decode returns the frame at the current position.
	Decode() (image.Image, error)
	// Release frees the context. It is safe to call more than once.
	Release()
}

// Decoder is the ffmpeg backed FrameDecoder. Each Decode call is a separate
// ffmpeg process seeking straight to the frame's timestamp.
type Decoder struct {
	exec *Executor
}

// NewDecoder returns a FrameDecoder using e.
func NewDecoder(e *Executor) *Decoder {
	return &Decoder{exec: e}
}

// Open validates its arguments and returns a handle positioned on frame 0.
func (d *Decoder) Open(ctx context.Context, path string, fps float64) (FrameHandle, error) {
	if path == "" {
		return nil, errors.New("video path is required")
	}
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %v", fps)
	}
	return &ffmpegHandle{exec: d.exec, ctx: ctx, path: path, fps: fps}, nil
}

type ffmpegHandle struct {
	exec     *Executor
	ctx      context.Context
	path     string
	fps      float64
	frame    int64
	released bool
}

func (h *ffmpegHandle) Seek(frameIndex int64) error {
	if h.released {
		return errors.New("frame handle released")
	}
	if frameIndex < 0 {
		return fmt.Errorf("invalid frame index %d", frameIndex)
	}
	h.frame = frameIndex
	return nil
}

func (h *ffmpegHandle) Decode() (image.Image, error) {
	if h.released {
		return nil, errors.New("frame handle released")
	}
	ts := float64(h.frame) / h.fps
	var out bytes.Buffer
	if _, err := h.exec.Run(h.ctx, RunOptions{
		InputArgs: []string{"-ss", FormatTimestamp(ts)},
		Args: []string{
			"-i", h.path,
			"-frames:v", "1",
			"-an",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		},
		Stdout: &out,
	}); err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", h.frame, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("decode frame %d at %.3fs: %w", h.frame, ts, ErrNoFrame)
	}
	img, err := png.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", h.frame, err)
	}
	return img, nil
}

func (h *ffmpegHandle) Release() {
	h.released = true
}
