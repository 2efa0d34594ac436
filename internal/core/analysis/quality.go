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
	"log/slog"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Resolution tiers.
const (
	Tier4K     = "4K Ultra HD"
	TierFullHD = "Full HD 1080p"
	TierHD     = "HD 720p"
	TierSD     = "SD 480p"
	TierLow    = "Low"
)

// Frame rate tiers.
const (
	FPSHigh = "High (60+ FPS)"
	FPSGood = "Good (30 FPS)"
	FPSLow  = "Low (< 30 FPS)"
)

// Sharpness tiers and overall ratings share names.
const (
	RatingExcellent = "Excellent"
	RatingGood      = "Good"
	RatingFair      = "Fair"
	RatingPoor      = "Poor"
)

// SharpnessSampleSize is how many keyframes are measured.
const SharpnessSampleSize = 10

// QualityScorer grades resolution, frame rate and keyframe sharpness.
type QualityScorer struct {
	logger *slog.Logger
}

// NewQualityScorer creates a scorer.
func NewQualityScorer(logger *slog.Logger) *QualityScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &QualityScorer{logger: logger.With("component", "quality")}
}

// Score builds the quality report for a video.
func (q *QualityScorer) Score(info model.VideoInfo, keyframes []model.Keyframe, cache *FrameCache) model.QualityReport {
	sample := keyframes
	if len(sample) > SharpnessSampleSize {
		sample = sample[:SharpnessSampleSize]
	}
	var sum float64
	var n int
	for _, kf := range sample {
		img, err := cache.Load(kf.ImageRef)
		if err != nil {
			q.logger.Debug("skipping unreadable keyframe", "path", kf.ImageRef, "error", err)
			continue
		}
		sum += LaplacianVariance(img)
		n++
	}
	var sharpness float64
	if n > 0 {
		sharpness = sum / float64(n)
	}

	res := ResolutionTier(info.Width)
	fps := FPSTier(info.FPS)
	sharp := SharpnessTier(sharpness)
	score := resolutionPoints(res) + fpsPoints(info.FPS) + sharpnessPoints(sharp)

	return model.QualityReport{
		Resolution:     info.Resolution(),
		ResolutionTier: res,
		FPS:            info.FPS,
		FPSTier:        fps,
		Sharpness:      sharpness,
		SharpnessTier:  sharp,
		Score:          score,
		Rating:         QualityRating(score),
	}
}

// ResolutionTier classifies a frame width.
func ResolutionTier(width int) string {
	switch {
	case width >= 3840:
		return Tier4K
	case width >= 1920:
		return TierFullHD
	case width >= 1280:
		return TierHD
	case width >= 854:
		return TierSD
	default:
		return TierLow
	}
}

// FPSTier classifies a frame rate.
func FPSTier(fps float64) string {
	switch {
	case fps >= 60:
		return FPSHigh
	case fps >= 30:
		return FPSGood
	default:
		return FPSLow
	}
}

// SharpnessTier classifies a Laplacian variance.
func SharpnessTier(v float64) string {
	switch {
	case v > 500:
		return RatingExcellent
	case v > 100:
		return RatingGood
	default:
		return RatingPoor
	}
}

// QualityRating maps the 0-100 score to a rating.
func QualityRating(score int) string {
	switch {
	case score >= 85:
		return RatingExcellent
	case score >= 60:
		return RatingGood
	case score >= 40:
		return RatingFair
	default:
		return RatingPoor
	}
}

func resolutionPoints(tier string) int {
	switch tier {
	case Tier4K, TierFullHD:
		return 40
	case TierHD:
		return 30
	default:
		return 15
	}
}

func fpsPoints(fps float64) int {
	switch {
	case fps >= 60:
		return 30
	case fps >= 30:
		return 25
	default:
		return 10
	}
}

func sharpnessPoints(tier string) int {
	switch tier {
	case RatingExcellent:
		return 30
	case RatingGood:
		return 20
	default:
		return 5
	}
}
