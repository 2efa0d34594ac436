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
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// ArtifactUpload copies every file of the run directory to
// gs://<bucket>/<prefix><run id>/ and outputs that prefix.
type ArtifactUpload struct {
	cor.BaseCommand
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

func NewArtifactUpload(name string, client *storage.Client, bucket string, prefix string, logger *slog.Logger) *ArtifactUpload {
	if logger == nil {
		logger = slog.Default()
	}
	cmd := &ArtifactUpload{BaseCommand: *cor.NewBaseCommand(name), client: client, bucket: bucket, prefix: prefix, logger: logger.With("command", name)}
	cmd.InputParamName = RunParam
	cmd.OutputParamName = ArtifactPrefixParam
	return cmd
}

// IsExecutable also requires a destination bucket.
func (c *ArtifactUpload) IsExecutable(context cor.Context) bool {
	return c.bucket != "" && c.BaseCommand.IsExecutable(context)
}

func (c *ArtifactUpload) Execute(context cor.Context) {
	run := context.Get(c.GetInputParam()).(*model.PipelineRun)
	objectPrefix := ArtifactObjectPrefix(c.prefix, run.ID)

	uploaded := 0
	err := filepath.WalkDir(run.OutputDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(run.OutputDir, p)
		if err != nil {
			return err
		}
		if err := c.upload(context, p, path.Join(objectPrefix, filepath.ToSlash(rel))); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		context.AddError(c.GetName(), fmt.Errorf("artifact upload for run %s failed: %w", run.ID, err))
		return
	}

	uri := cloud.GCSURI(c.bucket, objectPrefix+"/")
	c.logger.Info("artifacts uploaded", "run_id", run.ID, "files", uploaded, "prefix", uri)
	context.Add(c.GetOutputParam(), uri)
}

func (c *ArtifactUpload) upload(context cor.Context, local string, object string) error {
	file, err := os.Open(local)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := c.client.Bucket(c.bucket).Object(object).NewWriter(context.GetContext())
	if ct := mime.TypeByExtension(filepath.Ext(local)); ct != "" {
		writer.ContentType = ct
	}
	if written, err := io.Copy(writer, file); err != nil {
		_ = writer.Close()
		return fmt.Errorf("copy %s to gs://%s/%s after %d bytes: %w", local, c.bucket, object, written, err)
	}
	// Close finalises the object; its error is the upload error.
	return writer.Close()
}

// ArtifactObjectPrefix is the object name prefix of a run's artifacts.
func ArtifactObjectPrefix(prefix string, runID string) string {
	return path.Join(prefix, runID)
}
