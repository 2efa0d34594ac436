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

// Package main is the videoinsight command line tool. It runs the analysis
// pipeline on a local video and reads the run catalog.
//
// Commands:
//   - analyze VIDEO_FILE: analyses a video, showing a progress bar, and
//     records the run in the catalog.
//   - runs: lists the catalogued runs, or the BigQuery export with --bigquery.
//   - report RUN_ID: prints the text summary of a run.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:  "videoinsight",
		Usage: "Scene, speech and content analysis of video files",
		Description: "videoinsight splits a video into scenes, extracts a keyframe storyboard, " +
			"transcribes and summarizes the audio, rates the content and writes a report.",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Usage:   "Directory holding .env.toml and the runtime overlays",
				Value:   "configs",
				EnvVars: []string{"GCP_CONFIG_PREFIX"},
			},
			&cli.StringFlag{
				Name:    "runtime",
				Usage:   "Runtime overlay to load, e.g. local or test",
				Value:   "local",
				EnvVars: []string{"GCP_RUNTIME"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log pipeline details to stderr",
			},
		},
		Commands: []*cli.Command{
			analyzeCommand(),
			runsCommand(),
			reportCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		errorStyle := color.New(color.FgRed)
		errorStyle.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
