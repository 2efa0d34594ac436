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

// Package test holds the shared helpers of the test suites: configuration
// loading, sample GCS notifications, synthetic image and audio fixtures, and
// fakes for the pipeline collaborators.
package test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
)

var (
	configOnce sync.Once
	config     *cloud.Config
	configErr  error
)

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// GetTestUploadMessageText is a GCS finalize notification for a video upload.
func GetTestUploadMessageText() string {
	return `{
  "kind": "storage#object",
  "id": "video_insight_uploads/holiday/beach-001.mp4/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/video_insight_uploads/o/holiday%2Fbeach-001.mp4",
  "name": "holiday/beach-001.mp4",
  "bucket": "video_insight_uploads",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "size": "25934803",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "mediaLink": "https://storage.googleapis.com/download/storage/v1/b/video_insight_uploads/o/holiday%2Fbeach-001.mp4?generation=1728615848664286&alt=media",
  "metadata": { "touch": "18" },
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
}`
}

// GetTestImageMessageText is a GCS notification for an object that is not a video.
func GetTestImageMessageText() string {
	return `{
  "kind": "storage#object",
  "name": "holiday/poster.png",
  "bucket": "video_insight_uploads",
  "contentType": "image/png",
  "size": "20480"
}`
}

// RepoRoot walks up from the working directory to the directory holding go.mod.
func RepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above working directory")
		}
		dir = parent
	}
}

// SetupOS points the configuration loader at the repository configs
// directory and the "test" runtime overlay.
func SetupOS() error {
	root, err := RepoRoot()
	if err != nil {
		return err
	}
	if err := os.Setenv(cloud.EnvConfigFilePrefix, filepath.Join(root, "configs")); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads the test configuration once per test binary.
func GetConfig(t *testing.T) *cloud.Config {
	t.Helper()
	configOnce.Do(func() {
		if configErr = SetupOS(); configErr != nil {
			return
		}
		config = cloud.NewConfig()
		configErr = cloud.LoadConfig(config)
	})
	if configErr != nil {
		t.Fatalf("failed to load test configuration: %v", configErr)
	}
	return config
}
