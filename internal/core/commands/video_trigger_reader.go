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
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
)

// videoExtensions are accepted when the upload carries no video content type.
var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true, ".m4v": true, ".mpeg": true, ".mpg": true,
}

// VideoTriggerReader parses a GCS object notification into a cloud.GCSObject.
//
// Notifications for objects that are not videos, or that sit under the
// output prefix of this service, produce no output. The rest of the chain
// then has no input and skips, and the message is acknowledged.
type VideoTriggerReader struct {
	cor.BaseCommand
	ignorePrefix string
	logger       *slog.Logger
}

// NewVideoTriggerReader creates the reader. ignorePrefix is usually the
// artifact output prefix, so a shared bucket does not re-trigger itself.
func NewVideoTriggerReader(name string, ignorePrefix string, logger *slog.Logger) *VideoTriggerReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoTriggerReader{BaseCommand: *cor.NewBaseCommand(name), ignorePrefix: ignorePrefix, logger: logger.With("command", name)}
}

func (c *VideoTriggerReader) Execute(context cor.Context) {
	in, ok := context.Get(c.GetInputParam()).(string)
	if !ok {
		context.AddError(c.GetName(), fmt.Errorf("trigger message is %T, want string", context.Get(c.GetInputParam())))
		return
	}

	var out cloud.GCSPubSubNotification
	if err := json.Unmarshal([]byte(in), &out); err != nil {
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal GCS notification: %w", err))
		return
	}
	if out.Bucket == "" || out.Name == "" {
		context.AddError(c.GetName(), fmt.Errorf("GCS notification without bucket or object name"))
		return
	}

	msg := &cloud.GCSObject{Bucket: out.Bucket, Name: out.Name, MIMEType: out.ContentType}
	if c.ignorePrefix != "" && strings.HasPrefix(out.Name, c.ignorePrefix) {
		c.logger.Debug("ignoring own artifact", "object", msg.URI())
		return
	}
	if !IsVideoObject(msg) {
		c.logger.Info("ignoring non-video upload", "object", msg.URI(), "content_type", out.ContentType)
		return
	}

	context.Add(cloud.GetGCSObjectName(), msg)
	context.Add(c.GetOutputParam(), msg)
}

// IsVideoObject accepts video/* content types, or a known video extension
// when the content type is generic.
func IsVideoObject(o *cloud.GCSObject) bool {
	if strings.HasPrefix(o.MIMEType, "video/") {
		return true
	}
	generic := o.MIMEType == "" || o.MIMEType == "application/octet-stream"
	return generic && videoExtensions[strings.ToLower(path.Ext(o.Name))]
}
