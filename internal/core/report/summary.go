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

package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

const (
	lineWidth         = 60
	transcriptPreview = 1000
)

// SummaryText renders the human readable report.
func SummaryText(run *model.PipelineRun) string {
	var b strings.Builder
	rule := strings.Repeat("=", lineWidth)

	b.WriteString(rule + "\n")
	b.WriteString(center("AI VIDEO ANALYSIS REPORT") + "\n")
	b.WriteString(rule + "\n\n")
	field(&b, "Run ID", run.ID)
	if !run.FinishedAt.IsZero() {
		field(&b, "Generated", run.FinishedAt.UTC().Format(time.RFC3339))
	}
	status := "completed"
	if !run.Success {
		status = "failed"
		if run.Error != "" {
			status += ": " + run.Error
		}
	}
	field(&b, "Status", status)

	info := run.VideoInfo
	section(&b, "VIDEO INFORMATION")
	field(&b, "File", filepath.Base(run.VideoPath))
	field(&b, "Duration", media.HumanDuration(info.Duration))
	field(&b, "Resolution", info.Resolution())
	field(&b, "Frame Rate", fmt.Sprintf("%.2f fps", info.FPS))
	field(&b, "Frames", fmt.Sprintf("%d", info.FrameCount))
	field(&b, "Video Codec", info.VideoCodec)
	if info.HasAudio {
		field(&b, "Audio", fmt.Sprintf("yes (%s)", info.AudioCodec))
	} else {
		field(&b, "Audio", "no")
	}
	field(&b, "Size", fmt.Sprintf("%.2f MB", float64(info.FileSize)/(1024*1024)))

	section(&b, "ANALYSIS SUMMARY")
	scenes := fmt.Sprintf("%d", len(run.Scenes))
	if run.SceneFallback {
		scenes += " (fixed windows)"
	}
	field(&b, "Scenes", scenes)
	field(&b, "Keyframes", fmt.Sprintf("%d extracted, %d failed", len(run.Keyframes), run.KeyframeFailures))
	field(&b, "Objects", fmt.Sprintf("%d detected", objectCount(run.Detections)))
	field(&b, "Processing Time", fmt.Sprintf("%.2fs", run.ProcessingTime))

	section(&b, "SCENE BREAKDOWN")
	if len(run.Scenes) == 0 {
		b.WriteString("No scenes.\n")
	}
	for _, scene := range run.Scenes {
		fmt.Fprintf(&b, "Scene %d: %.1fs - %.1fs (%.1fs)\n", scene.Index+1, scene.Start, scene.End, scene.Duration())
		for _, d := range run.Detections {
			if d.SceneIndex != scene.Index {
				continue
			}
			if d.Caption != "" {
				fmt.Fprintf(&b, "   Caption: %s\n", d.Caption)
			}
			if len(d.Objects) > 0 {
				labels := make([]string, 0, len(d.Objects))
				for _, o := range d.Objects {
					labels = append(labels, fmt.Sprintf("%s (%.2f)", o.Label, o.Confidence))
				}
				fmt.Fprintf(&b, "   Objects: %s\n", strings.Join(labels, ", "))
			}
		}
	}

	writeAudio(&b, run)
	writeTranscript(&b, run.Transcript)
	writeInsights(&b, run.Summary)
	writeModeration(&b, run.Moderation)
	writeQuality(&b, run.Quality)

	if run.SummaryVideo != nil && run.SummaryVideo.Path != "" {
		section(&b, "SUMMARY VIDEO")
		field(&b, "File", filepath.Base(run.SummaryVideo.Path))
		if run.SummaryVideo.Fallback {
			field(&b, "Content", "opening of the source video")
		} else {
			field(&b, "Scenes", joinInts(run.SummaryVideo.Scenes))
		}
	}

	section(&b, "STAGES")
	for _, s := range run.Stages {
		line := fmt.Sprintf("%-22s %-10s %6dms", s.Stage, s.Status, s.DurationMs)
		if s.Error != "" {
			line += "  " + s.Error
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}
	b.WriteString("\n" + rule + "\n")
	return b.String()
}

func writeAudio(b *strings.Builder, run *model.PipelineRun) {
	section(b, "AUDIO")
	if !run.Audio.Extracted {
		reason := run.Audio.Reason
		if reason == "" {
			reason = "not extracted"
		}
		field(b, "Audio", reason)
		return
	}
	if p := run.Audio.Properties; p != nil {
		field(b, "Format", fmt.Sprintf("%d Hz, %d ch, %d bit", p.SampleRate, p.Channels, p.BitDepth))
		field(b, "Loudness", fmt.Sprintf("%.2f dBFS (peak %.2f)", p.LoudnessDBFS, p.MaxAmplitude))
		field(b, "Quality Score", fmt.Sprintf("%d/100", p.QualityScore))
	}
}

func writeTranscript(b *strings.Builder, t model.Transcript) {
	section(b, "TRANSCRIPT")
	field(b, "Status", string(t.Status))
	if t.DetectedLanguage != "" {
		field(b, "Language", fmt.Sprintf("%s (confidence %.2f)", t.DetectedLanguage, t.Confidence))
	}
	if t.Error != "" {
		field(b, "Error", t.Error)
	}
	if text := strings.TrimSpace(t.Text); text != "" {
		runes := []rune(text)
		if len(runes) > transcriptPreview {
			text = string(runes[:transcriptPreview]) + "..."
		}
		b.WriteString(text + "\n")
	}
}

func writeInsights(b *strings.Builder, s model.TextInsights) {
	section(b, "TEXT SUMMARY")
	b.WriteString(s.Summary + "\n")
	if len(s.KeyPoints) > 0 {
		b.WriteString("Key points:\n")
		for _, p := range s.KeyPoints {
			fmt.Fprintf(b, "  - %s\n", p)
		}
	}
	if len(s.Topics) > 0 {
		field(b, "Topics", strings.Join(s.Topics, ", "))
	}
	field(b, "Sentiment", fmt.Sprintf("%s (%.2f)", s.Sentiment, s.SentimentScore))
	field(b, "Words", fmt.Sprintf("%d in %d sentences", s.WordCount, s.SentenceCount))
}

func writeModeration(b *strings.Builder, m *model.ModerationReport) {
	section(b, "CONTENT MODERATION")
	if m == nil {
		b.WriteString("Not performed.\n")
		return
	}
	field(b, "Rating", m.Rating)
	field(b, "Severity Score", fmt.Sprintf("%d", m.SeverityScore))
	field(b, "Recommendation", m.Recommendation)
	for _, f := range m.Findings {
		fmt.Fprintf(b, "  - %s [%s] x%d from %s: %s\n", f.Category, f.Severity, f.Count, f.Source, strings.Join(f.Evidence, ", "))
	}
}

func writeQuality(b *strings.Builder, q *model.QualityReport) {
	section(b, "VIDEO QUALITY")
	if q == nil {
		b.WriteString("Not performed.\n")
		return
	}
	field(b, "Rating", fmt.Sprintf("%s (%d/100)", q.Rating, q.Score))
	field(b, "Resolution", fmt.Sprintf("%s (%s)", q.Resolution, q.ResolutionTier))
	field(b, "Frame Rate", fmt.Sprintf("%.2f fps (%s)", q.FPS, q.FPSTier))
	field(b, "Sharpness", fmt.Sprintf("%.1f (%s)", q.Sharpness, q.SharpnessTier))
}

func section(b *strings.Builder, title string) {
	b.WriteString("\n" + title + "\n")
	b.WriteString(strings.Repeat("-", lineWidth) + "\n")
}

func field(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "%-16s %s\n", name+":", value)
}

func center(s string) string {
	pad := (lineWidth - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

func objectCount(detections []model.DetectionResult) int {
	n := 0
	for _, d := range detections {
		n += len(d.Objects)
	}
	return n
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
