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

package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/jaycherian/gcp-go-video-insight/internal/catalog"
	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/telemetry"
)

// loadConfig reads the layered configuration selected by the global flags.
func loadConfig(c *cli.Context) (*cloud.Config, error) {
	if err := os.Setenv(cloud.EnvConfigFilePrefix, c.String("config-dir")); err != nil {
		return nil, err
	}
	if err := os.Setenv(cloud.EnvConfigRuntime, c.String("runtime")); err != nil {
		return nil, err
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// newLogger logs warnings only, unless --verbose asks for the configured level.
func newLogger(c *cli.Context, config *cloud.Config) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = telemetry.ParseLevel(config.Telemetry.LogLevel)
	}
	logger := telemetry.NewLogger(c.App.ErrWriter, level)
	slog.SetDefault(logger)
	return logger
}

func openCatalog(c *cli.Context, config *cloud.Config, logger *slog.Logger) (*catalog.Store, error) {
	return catalog.Open(c.Context, config.Catalog.Driver, config.Catalog.DSN, logger)
}

// needsCloud reports whether a configured backend calls Vertex AI.
func needsCloud(b cloud.Backends) bool {
	return b.Detector == cloud.BackendGemini || b.Transcriber == cloud.BackendGemini || b.Summarizer == cloud.BackendGemini
}
