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
	"strconv"
	"strings"
)

// DetectBoundaries runs ffmpeg's scene score filter and returns the
// timestamps, in seconds, at which the score exceeded threshold.
//
// Inputs:
//   - ctx: Cancels the ffmpeg process.
//   - input: The source video.
//   - threshold: Sensitivity on the 0-100 scale. ffmpeg's scene score is in
//     [0, 1], so the filter is given threshold/100.
//
// Outputs:
//   - []float64: Raw boundary timestamps in the order ffmpeg printed them.
//   - error: Any failure other than the benign null-muxer errors.
func (e *Executor) DetectBoundaries(ctx context.Context, input string, threshold float64) ([]float64, error) {
	e.logger.Info("detecting scene changes", "input", input, "threshold", threshold)

	output, err := e.Run(ctx, RunOptions{
		Args: []string{
			"-i", input,
			"-vf", fmt.Sprintf("select='gt(scene,%.4f)',showinfo", threshold/100),
			"-an",
			"-f", "null",
			"-",
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isNullOutputError(err) {
			return nil, fmt.Errorf("scene detection failed: %w", err)
		}
	}

	boundaries := ParseShowinfo(output)
	e.logger.Info("scene detection complete", "boundaries", len(boundaries))
	return boundaries, nil
}

// ParseShowinfo extracts the pts_time values printed by the showinfo filter.
func ParseShowinfo(output string) []float64 {
	var out []float64
	for _, line := range strings.Split(output, "\n") {
		_, rest, ok := strings.Cut(line, "pts_time:")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}
