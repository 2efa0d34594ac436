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
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/gertd/go-pluralize"
	"github.com/schollz/progressbar/v3"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// progressSink renders pipeline progress as a percentage bar.
type progressSink struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressSink(w io.Writer) *progressSink {
	return &progressSink{bar: progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Analyzing"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)}
}

// Report implements model.ProgressSink.
func (p *progressSink) Report(progress model.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar.Describe(fmt.Sprintf("%-16s", progress.Stage))
	_ = p.bar.Set(int(math.Round(progress.Fraction * 100)))
}

// Close ends the bar on its own line.
func (p *progressSink) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Exit()
}

// printRun writes the outcome of a run: counts, ratings and artifact paths.
func printRun(w io.Writer, run *model.PipelineRun) {
	summaryStyle := color.New(color.FgCyan, color.Bold)
	valueStyle := color.New(color.Bold)
	regularStyle := color.New(color.Reset)
	successStyle := color.New(color.FgGreen)
	errorStyle := color.New(color.FgRed)
	warnStyle := color.New(color.FgYellow)
	plural := pluralize.NewClient()

	summaryStyle.Fprintf(w, "\nRun %s\n", run.ID)
	if run.Success {
		successStyle.Fprintf(w, "Analysis complete in %.1fs\n", run.ProcessingTime)
	} else {
		errorStyle.Fprintf(w, "Analysis failed after %.1fs: %s\n", run.ProcessingTime, run.Error)
	}

	regularStyle.Fprintf(w, "Video: ")
	valueStyle.Fprintf(w, "%s, %.1fs\n", run.VideoInfo.Resolution(), run.VideoInfo.Duration)
	regularStyle.Fprintf(w, "Found ")
	valueStyle.Fprintf(w, "%s", plural.Pluralize("scene", len(run.Scenes), true))
	regularStyle.Fprintf(w, " and extracted ")
	valueStyle.Fprintf(w, "%s\n", plural.Pluralize("keyframe", len(run.Keyframes), true))
	if run.KeyframeFailures > 0 {
		warnStyle.Fprintf(w, "%s could not be decoded\n", plural.Pluralize("keyframe", run.KeyframeFailures, true))
	}
	if lang := run.Transcript.DetectedLanguage; lang != "" {
		regularStyle.Fprintf(w, "Language: ")
		valueStyle.Fprintf(w, "%s\n", lang)
	}
	if m := run.Moderation; m != nil {
		regularStyle.Fprintf(w, "Content rating: ")
		style := successStyle
		if !m.IsSafe {
			style = warnStyle
		}
		style.Fprintf(w, "%s (%s)\n", m.Rating, plural.Pluralize("flag", m.TotalFlags, true))
	}
	if q := run.Quality; q != nil {
		regularStyle.Fprintf(w, "Quality: ")
		valueStyle.Fprintf(w, "%d/100 %s\n", q.Score, q.Rating)
	}

	for _, stage := range run.Stages {
		if stage.Status == model.StageDegraded {
			warnStyle.Fprintf(w, "Stage %s degraded: %s\n", stage.Stage, stage.Error)
		}
	}

	if run.Artifacts.SummaryText != "" {
		regularStyle.Fprintf(w, "Report written to ")
		valueStyle.Fprintf(w, "%s\n", run.OutputDir)
	}
}

// printSummaries lists catalogued runs one per line.
func printSummaries(w io.Writer, runs []runLine) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	successStyle := color.New(color.FgGreen)
	errorStyle := color.New(color.FgRed)
	regularStyle := color.New(color.Reset)
	plural := pluralize.NewClient()

	for _, r := range runs {
		style := regularStyle
		switch r.State {
		case string(model.StateDone):
			style = successStyle
		case string(model.StateFailed):
			style = errorStyle
		}
		style.Fprintf(w, "%-10s %-9s", r.ID, r.State)
		regularStyle.Fprintf(w, " %s  %-10s %s  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			plural.Pluralize("scene", r.Scenes, true),
			dash(r.Rating),
			r.Video)
		if r.Error != "" {
			errorStyle.Fprintf(w, "%11s%s\n", "", strings.TrimSpace(r.Error))
		}
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
