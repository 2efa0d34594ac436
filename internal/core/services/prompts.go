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

package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Default prompt templates, used when the configuration does not override them.
const (
	DefaultDetectionPrompt = `You are given one keyframe of a video (scene {{ .SCENE }}, at {{ .TIMESTAMP }}).
Describe the frame in one sentence and list the visible objects.
Return only JSON in exactly this form, with confidences between 0 and 1 and
bounding boxes as [x1, y1, x2, y2] pixel coordinates:
{{ .EXAMPLE_JSON }}`

	DefaultTranscriptionPrompt = `Transcribe the speech in this audio file.
{{ if .LANGUAGE }}The spoken language is {{ .LANGUAGE }}.{{ else }}Detect the spoken language and report it as a BCP-47 tag.{{ end }}
If there is no speech, return an empty text and no segments.
Return only JSON in exactly this form:
{{ .EXAMPLE_JSON }}`

	DefaultSummaryPrompt = `Summarize the following video transcript{{ if .LANGUAGE }} (language {{ .LANGUAGE }}){{ end }}.
Give a summary of at most three sentences, up to three key points, up to five topics,
and the overall sentiment as positive, negative or neutral with a score between -1 and 1.
Return only JSON in exactly this form:
{{ .EXAMPLE_JSON }}

Transcript:
{{ .TEXT }}`
)

// ParsePrompt parses text as a named template, falling back to fallback when
// text is blank.
func ParsePrompt(name string, text string, fallback string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = fallback
	}
	t, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s prompt: %w", name, err)
	}
	return t, nil
}

func render(t *template.Template, params map[string]interface{}) (string, error) {
	var buffer bytes.Buffer
	if err := t.Execute(&buffer, params); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buffer.String(), nil
}

func exampleJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// exampleInsights is the few-shot sample of a summary answer.
func exampleInsights() model.TextInsights {
	return model.TextInsights{
		Summary:        "The host compares three budget cameras and recommends the smallest one.",
		KeyPoints:      []string{"Three cameras are tested.", "Battery life differs widely.", "The smallest camera wins."},
		Topics:         []string{"cameras", "battery", "budget"},
		Sentiment:      model.SentimentPositive,
		SentimentScore: 0.4,
	}
}

// decodeJSON unmarshals the first JSON object found in raw.
func decodeJSON(raw string, v interface{}) error {
	raw = strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in model answer %q", truncateForLog(raw))
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse model answer: %w", err)
	}
	return nil
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
