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
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// probeResult mirrors the parts of `ffprobe -print_format json` we read.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

// Probe reads the stream information of filePath.
//
// Outputs:
//   - model.VideoInfo: Width, height, fps and frame count of the first video
//     stream. Duration is derived as frame_count / fps. MIMEType and FileSize
//     are left for the caller.
//   - error: ffprobe failures, or ErrNoVideoStream.
func (e *Executor) Probe(ctx context.Context, filePath string) (model.VideoInfo, error) {
	if filePath == "" {
		return model.VideoInfo{}, fmt.Errorf("file path is required")
	}
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath)
	output, err := cmd.Output()
	if err != nil {
		return model.VideoInfo{}, fmt.Errorf("ffprobe failed for %s: %w", filePath, err)
	}
	return ParseProbe(output)
}

// ParseProbe converts raw ffprobe JSON into a VideoInfo.
func ParseProbe(output []byte) (model.VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return model.VideoInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var (
		info      model.VideoInfo
		video     *probeStream
		container = parseFloat(probe.Format.Duration)
	)
	for i := range probe.Streams {
		s := &probe.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if !info.HasAudio {
				info.HasAudio = true
				info.AudioCodec = s.CodecName
			}
		}
	}
	if video == nil {
		return info, ErrNoVideoStream
	}

	info.Width = video.Width
	info.Height = video.Height
	info.VideoCodec = video.CodecName
	info.FPS = ParseFrameRate(video.RFrameRate)
	if info.FPS <= 0 || info.FPS > 1000 {
		info.FPS = ParseFrameRate(video.AvgFrameRate)
	}

	if n, err := strconv.ParseInt(video.NbFrames, 10, 64); err == nil && n > 0 {
		info.FrameCount = n
	} else {
		streamDuration := parseFloat(video.Duration)
		if streamDuration <= 0 {
			streamDuration = container
		}
		info.FrameCount = int64(math.Round(streamDuration * info.FPS))
	}
	info.Duration = model.DeriveDuration(info.FrameCount, info.FPS)
	if size, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
		info.FileSize = size
	}
	return info, nil
}

// ParseFrameRate parses ffprobe rationals such as "30000/1001".
func ParseFrameRate(s string) float64 {
	var num, den float64
	if _, err := fmt.Sscanf(s, "%g/%g", &num, &den); err != nil || den == 0 {
		return parseFloat(s)
	}
	return num / den
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
