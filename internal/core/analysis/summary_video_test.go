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

package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

func detectionWith(scene int, objects int) model.DetectionResult {
	d := model.DetectionResult{SceneIndex: scene, Objects: make([]model.DetectedObject, objects)}
	for i := range d.Objects {
		d.Objects[i] = model.DetectedObject{Label: "person", Confidence: 0.9}
	}
	return d
}

func TestPlanSummaryPicksBusiestScenesInOrder(t *testing.T) {
	scenes := analysis.FixedWindows(80, 10)
	detections := []model.DetectionResult{
		detectionWith(0, 1), detectionWith(1, 5), detectionWith(2, 0), detectionWith(3, 3),
		detectionWith(4, 3), detectionWith(5, 0), detectionWith(6, 2), detectionWith(7, 4),
	}

	plan := analysis.PlanSummary(scenes, detections, analysis.SummaryClipCount)

	assert.Equal(t, []int{0, 1, 3, 4, 6, 7}, plan.Scenes)
	assert.Equal(t, media.ClipSpan{Start: 0, End: 10}, plan.Spans[0])
	assert.Equal(t, media.ClipSpan{Start: 70, End: 80}, plan.Spans[5])
}

func TestPlanSummaryWithoutDetectionsKeepsFirstScenes(t *testing.T) {
	plan := analysis.PlanSummary(analysis.FixedWindows(100, 10), nil, 0)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, plan.Scenes)
}

func TestPlanSummaryShortVideo(t *testing.T) {
	plan := analysis.PlanSummary(analysis.FixedWindows(12, 10), []model.DetectionResult{detectionWith(0, 2)}, 6)
	assert.Equal(t, []int{0}, plan.Scenes)
	assert.Len(t, plan.Spans, 1)
}

func TestFallbackClipSeconds(t *testing.T) {
	assert.Equal(t, 3.0, analysis.FallbackClipSeconds(3))
	assert.Equal(t, analysis.SummaryFallbackSeconds, analysis.FallbackClipSeconds(60))
	assert.Equal(t, analysis.SummaryFallbackSeconds, analysis.FallbackClipSeconds(0))
}
