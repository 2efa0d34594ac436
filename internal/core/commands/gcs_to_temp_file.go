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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
)

// GCSToTempFile downloads the triggering object into a temporary directory
// and outputs the local path. The directory is removed when the context closes.
type GCSToTempFile struct {
	cor.BaseCommand
	client  *storage.Client
	workDir string
	logger  *slog.Logger
}

// NewGCSToTempFile creates the command. An empty workDir uses the OS temp dir.
func NewGCSToTempFile(name string, client *storage.Client, workDir string, logger *slog.Logger) *GCSToTempFile {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSToTempFile{BaseCommand: *cor.NewBaseCommand(name), client: client, workDir: workDir, logger: logger.With("command", name)}
}

func (c *GCSToTempFile) Execute(context cor.Context) {
	msg := context.Get(c.GetInputParam()).(*cloud.GCSObject)

	if c.workDir != "" {
		if err := os.MkdirAll(c.workDir, 0o755); err != nil {
			context.AddError(c.GetName(), fmt.Errorf("could not create work dir: %w", err))
			return
		}
	}
	dir, err := os.MkdirTemp(c.workDir, "download-")
	if err != nil {
		context.AddError(c.GetName(), fmt.Errorf("could not create temp dir: %w", err))
		return
	}
	context.AddTempFile(dir)

	reader, err := c.client.Bucket(msg.Bucket).Object(msg.Name).NewReader(context.GetContext())
	if err != nil {
		context.AddError(c.GetName(), fmt.Errorf("failed to create GCS reader for %s: %w", msg.URI(), err))
		return
	}
	defer func() {
		if err := reader.Close(); err != nil {
			c.logger.Warn("failed to close GCS reader", "error", err)
		}
	}()

	local := filepath.Join(dir, path.Base(msg.Name))
	file, err := os.Create(local)
	if err != nil {
		context.AddError(c.GetName(), fmt.Errorf("could not create temp file: %w", err))
		return
	}
	written, err := io.Copy(file, reader)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		context.AddError(c.GetName(), fmt.Errorf("failed to copy %s after %d bytes: %w", msg.URI(), written, err))
		return
	}

	c.logger.Info("downloaded object", "object", msg.URI(), "path", local, "bytes", written)
	context.Add(c.GetOutputParam(), local)
}
