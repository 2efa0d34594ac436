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

// Package services holds the collaborator backends of the pipeline: the
// detector and captioner, the transcriber, the summarizers and the BigQuery
// run report service. Every backend is reached through a narrow interface
// declared by the stage command that consumes it.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

// geminiCounters are the token and retry counters shared by the Gemini backends.
type geminiCounters struct {
	input  metric.Int64Counter
	output metric.Int64Counter
	retry  metric.Int64Counter
}

func newGeminiCounters(name string) geminiCounters {
	meter := otel.Meter(cor.MeterName)
	var c geminiCounters
	c.input, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", name))
	c.output, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", name))
	c.retry, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.retry", name))
	return c
}

// GeminiDetector captions keyframes and lists their objects with a
// multi-modal Gemini prompt, one request per keyframe.
type GeminiDetector struct {
	model    cloud.ContentGenerator
	template *template.Template
	counters geminiCounters
	logger   *slog.Logger
}

// NewGeminiDetector creates a detector. template must render a prompt from
// SCENE, TIMESTAMP and EXAMPLE_JSON.
func NewGeminiDetector(model cloud.ContentGenerator, template *template.Template, logger *slog.Logger) *GeminiDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiDetector{
		model:    model,
		template: template,
		counters: newGeminiCounters("detector"),
		logger:   logger.With("component", "gemini_detector"),
	}
}

type detectionAnswer struct {
	Caption string                 `json:"caption"`
	Objects []model.DetectedObject `json:"objects"`
}

// Detect returns one result per keyframe that could be analysed, in keyframe
// order. Failures of individual keyframes are joined into the returned error
// and do not stop the others.
func (d *GeminiDetector) Detect(ctx context.Context, keyframes []model.Keyframe) ([]model.DetectionResult, error) {
	results := make([]model.DetectionResult, 0, len(keyframes))
	var errs []error
	for _, kf := range keyframes {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := d.detectOne(ctx, kf)
		if err != nil {
			d.logger.WarnContext(ctx, "detection failed", "scene", kf.SceneIndex, "error", err)
			errs = append(errs, fmt.Errorf("scene %d: %w", kf.SceneIndex, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

func (d *GeminiDetector) detectOne(ctx context.Context, kf model.Keyframe) (model.DetectionResult, error) {
	image, err := os.ReadFile(kf.ImageRef)
	if err != nil {
		return model.DetectionResult{}, err
	}
	prompt, err := render(d.template, map[string]interface{}{
		"SCENE":        kf.SceneIndex,
		"TIMESTAMP":    media.HumanDuration(kf.Timestamp),
		"EXAMPLE_JSON": exampleJSON(model.GetExampleDetection()),
	})
	if err != nil {
		return model.DetectionResult{}, err
	}

	raw, err := cloud.GenerateMultiModalResponse(ctx, d.counters.input, d.counters.output, d.counters.retry, d.model,
		cloud.NewUserContent(cloud.NewTextPart(prompt), cloud.NewInlinePart(image, "image/jpeg")))
	if err != nil {
		return model.DetectionResult{}, err
	}

	var answer detectionAnswer
	if err := decodeJSON(raw, &answer); err != nil {
		return model.DetectionResult{}, err
	}
	return NormalizeDetection(kf, answer.Caption, answer.Objects), nil
}

// NormalizeDetection binds a detector answer to its keyframe, clamps
// confidences to [0, 1] and drops unlabelled objects.
func NormalizeDetection(kf model.Keyframe, caption string, objects []model.DetectedObject) model.DetectionResult {
	out := model.DetectionResult{
		SceneIndex: kf.SceneIndex,
		Timestamp:  kf.Timestamp,
		Caption:    caption,
		Objects:    make([]model.DetectedObject, 0, len(objects)),
	}
	for _, o := range objects {
		if o.Label == "" {
			continue
		}
		o.Confidence = math.Max(0, math.Min(1, o.Confidence))
		out.Objects = append(out.Objects, o)
	}
	return out
}

// BasicCaptioner is the detector used when no model is configured. It
// captions each keyframe with its file name and time and reports no objects.
type BasicCaptioner struct{}

// NewBasicCaptioner returns the model-free captioner.
func NewBasicCaptioner() *BasicCaptioner {
	return &BasicCaptioner{}
}

// Detect never fails.
func (b *BasicCaptioner) Detect(_ context.Context, keyframes []model.Keyframe) ([]model.DetectionResult, error) {
	results := make([]model.DetectionResult, 0, len(keyframes))
	for _, kf := range keyframes {
		results = append(results, model.DetectionResult{
			SceneIndex: kf.SceneIndex,
			Timestamp:  kf.Timestamp,
			Caption:    fmt.Sprintf("Keyframe %s at %s", filepath.Base(kf.ImageRef), media.HumanDuration(kf.Timestamp)),
			Objects:    []model.DetectedObject{},
		})
	}
	return results, nil
}
