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

package analysis

import (
	"math"
	"sort"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

const (
	// SummaryClipCount is the number of scenes in a summary video.
	SummaryClipCount = 6
	// SummaryFallbackSeconds is the length of the clip used when no scene clip
	// could be produced.
	SummaryFallbackSeconds = 5.0
	// SummaryVideoFile is the run-relative name of the summary video.
	SummaryVideoFile = "summary.mp4"
)

// SummaryPlan lists the scenes that make up the summary video.
type SummaryPlan struct {
	Scenes []int
	Spans  []media.ClipSpan
}

// PlanSummary ranks scenes by their number of detected objects and keeps the
// top limit. Equal scores keep scene order. The chosen scenes are returned in
// chronological order.
func PlanSummary(scenes []model.Scene, detections []model.DetectionResult, limit int) SummaryPlan {
	if limit <= 0 {
		limit = SummaryClipCount
	}
	objects := make(map[int]int, len(detections))
	for _, d := range detections {
		objects[d.SceneIndex] += len(d.Objects)
	}

	ranked := make([]model.Scene, len(scenes))
	copy(ranked, scenes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return objects[ranked[i].Index] > objects[ranked[j].Index]
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Start < ranked[j].Start })

	plan := SummaryPlan{Scenes: make([]int, 0, len(ranked)), Spans: make([]media.ClipSpan, 0, len(ranked))}
	for _, s := range ranked {
		if s.End <= s.Start {
			continue
		}
		plan.Scenes = append(plan.Scenes, s.Index)
		plan.Spans = append(plan.Spans, media.ClipSpan{Start: s.Start, End: s.End})
	}
	return plan
}

// FallbackClipSeconds is min(SummaryFallbackSeconds, duration), or
// SummaryFallbackSeconds when the duration is unknown.
func FallbackClipSeconds(duration float64) float64 {
	if duration <= 0 {
		return SummaryFallbackSeconds
	}
	return math.Min(SummaryFallbackSeconds, duration)
}
