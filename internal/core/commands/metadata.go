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

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// ErrNotVideo is the fatal cause for sources whose content is recognisably
// something other than a video.
var ErrNotVideo = errors.New("source is not a video")

// Prober reads the stream information of a video.
type Prober interface {
	Probe(ctx context.Context, path string) (model.VideoInfo, error)
}

// VideoMetadata is the first stage. Any failure here is fatal: an unreadable
// or unprobeable source cannot be analysed.
type VideoMetadata struct {
	stageCommand
	prober Prober
}

// NewVideoMetadata creates the metadata stage.
func NewVideoMetadata(prober Prober, logger *slog.Logger) *VideoMetadata {
	cmd := &VideoMetadata{stageCommand: newStageCommand(StageMetadata, model.StateMetadataExtracted, logger), prober: prober}
	cmd.fatal = true
	return cmd
}

func (c *VideoMetadata) Execute(context cor.Context) {
	start := time.Now()
	run := c.run(context)

	result := c.inspect(context.GetContext(), run.VideoPath)
	if result.Err == nil {
		run.VideoInfo = result.Value
		c.logger.Info("video probed",
			"run_id", run.ID,
			"resolution", result.Value.Resolution(),
			"fps", result.Value.FPS,
			"duration", result.Value.Duration,
			"has_audio", result.Value.HasAudio,
			"mime_type", result.Value.MIMEType)
	}
	applyResult(context, &c.stageCommand, run, start, result)
}

// inspect stats, sniffs and probes the source. Every error is fatal.
func (c *VideoMetadata) inspect(ctx context.Context, path string) model.Result[model.VideoInfo] {
	stat, err := os.Stat(path)
	if err != nil {
		return model.Failed[model.VideoInfo](StageMetadata, fmt.Errorf("cannot read source: %w", err))
	}
	if stat.IsDir() {
		return model.Failed[model.VideoInfo](StageMetadata, fmt.Errorf("cannot read source: %s is a directory", path))
	}

	mimeType, err := sniffMIME(path)
	if err != nil {
		return model.Failed[model.VideoInfo](StageMetadata, err)
	}

	info, err := c.prober.Probe(ctx, path)
	if err != nil {
		return model.Failed[model.VideoInfo](StageMetadata, fmt.Errorf("probe failed: %w", err))
	}
	info.FileSize = stat.Size()
	info.MIMEType = mimeType
	return model.Ok(info)
}

// sniffMIME identifies the container from its magic bytes and falls back to
// the file extension when the signature is unknown.
func sniffMIME(path string) (string, error) {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read source: %w", err)
	}
	if kind != filetype.Unknown {
		if kind.MIME.Type != "video" {
			return "", fmt.Errorf("%w: detected %s", ErrNotVideo, kind.MIME.Value)
		}
		return kind.MIME.Value, nil
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return strings.SplitN(byExt, ";", 2)[0], nil
	}
	return "application/octet-stream", nil
}
