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
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Encoder settings for summary clips. Clips are re-encoded so that the
// concat demuxer can join them without keyframe alignment problems.
const (
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultCRF        = 23
	DefaultPreset     = "veryfast"
)

// ClipSpan is a [Start, End) window of the source in seconds.
type ClipSpan struct {
	Start float64
	End   float64
}

// CutClip re-encodes [start, end) of input into output.
func (e *Executor) CutClip(ctx context.Context, input string, output string, start float64, end float64) error {
	if end <= start {
		return fmt.Errorf("invalid clip duration: end %.3f must be after start %.3f", end, start)
	}
	_, err := e.Run(ctx, RunOptions{
		InputArgs: []string{"-ss", FormatTimestamp(start)},
		Args: []string{
			"-i", input,
			"-t", FormatTimestamp(end - start),
			"-c:v", DefaultVideoCodec,
			"-preset", DefaultPreset,
			"-crf", fmt.Sprint(DefaultCRF),
			"-c:a", DefaultAudioCodec,
			"-movflags", "+faststart",
			output,
		},
	})
	if err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}
	return nil
}

// Concat joins inputs into output with the concat demuxer.
func (e *Executor) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no input files provided")
	}
	list, err := os.CreateTemp(filepath.Dir(output), "concat-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(list.Name())

	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			list.Close()
			return err
		}
		if _, err := fmt.Fprintf(list, "file '%s'\n", abs); err != nil {
			list.Close()
			return err
		}
	}
	if err := list.Close(); err != nil {
		return err
	}

	_, err = e.Run(ctx, RunOptions{
		Args: []string{"-f", "concat", "-safe", "0", "-i", list.Name(), "-c", "copy", output},
	})
	if err != nil {
		return fmt.Errorf("concat failed: %w", err)
	}
	return nil
}

// Summarize cuts every span out of input and concatenates the pieces, in the
// order given, into output. When no span can be cut the first fallbackSeconds
// of the source are used instead.
//
// Inputs:
//   - ctx: Cancels the ffmpeg processes.
//   - input: The source video.
//   - output: The summary video path.
//   - spans: The clip windows.
//   - fallbackSeconds: Length of the fallback clip.
//
// Outputs:
//   - model.ClipOutcome: The output path, or why none was produced.
//   - bool: True when the fallback clip was used.
func (e *Executor) Summarize(ctx context.Context, input string, output string, spans []ClipSpan, fallbackSeconds float64) (model.ClipOutcome, bool) {
	workDir, err := os.MkdirTemp(filepath.Dir(output), "clips-")
	if err != nil {
		return model.ClipOutcome{Reason: fmt.Sprintf("failed to create clip directory: %v", err)}, false
	}
	defer os.RemoveAll(workDir)

	var parts []string
	for i, span := range spans {
		part := filepath.Join(workDir, fmt.Sprintf("clip_%03d.mp4", i))
		if err := e.CutClip(ctx, input, part, span.Start, span.End); err != nil {
			e.logger.Warn("skipping summary clip", "index", i, "error", err)
			continue
		}
		parts = append(parts, part)
	}

	if len(parts) > 0 {
		err := e.Concat(ctx, parts, output)
		if err == nil {
			return model.ClipOutcome{Path: output}, false
		}
		e.logger.Warn("summary concat failed, using fallback clip", "error", err)
	}

	if err := e.CutClip(ctx, input, output, 0, fallbackSeconds); err != nil {
		return model.ClipOutcome{Reason: err.Error()}, true
	}
	return model.ClipOutcome{Path: output}, true
}
