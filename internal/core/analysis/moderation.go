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
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Scoring weights and thresholds of the moderation engine.
const (
	ProfanityWeight        = 2
	ViolenceWeight         = 3
	AdultWeight            = 3
	WeaponWeight           = 3
	NSFWCaptionWeight      = 3
	DarkContentPenalty     = 5
	WeaponMinConfidence    = 0.8
	DarkLuminanceThreshold = 50.0
	DefaultLuminance       = 128.0
	DarkSampleSize         = 5
	MaxEvidence            = 5
	NotSafeAbove           = 20
	CautionAbove           = 10
)

const darkEvidence = "Video contains predominantly dark scenes"

// wordPattern matches Unicode word runs, so accented and non-Latin words
// survive tokenisation.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// ContentModerationEngine scores transcript text, detections and keyframe
// brightness against the lexicon. It is stateless and safe for concurrent use.
type ContentModerationEngine struct {
	lexicon *Lexicon
	logger  *slog.Logger
}

// NewContentModerationEngine creates an engine over lexicon.
func NewContentModerationEngine(lexicon *Lexicon, logger *slog.Logger) *ContentModerationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentModerationEngine{lexicon: lexicon, logger: logger.With("component", "moderation")}
}

// Lexicon returns the engine's vocabulary.
func (m *ContentModerationEngine) Lexicon() *Lexicon {
	return m.lexicon
}

// Moderate builds a report from the available evidence. It only reads its
// inputs.
//
// Inputs:
//   - text: Transcript text; may be empty.
//   - keyframes: Extracted keyframes in scene order; the first five are
//     sampled for brightness.
//   - detections: Detector output; weapons and caption keywords are flagged.
//   - language: Detected or requested language tag, e.g. "es-ES" or "auto".
//   - cache: Optional per-run frame cache.
//
// Outputs:
//   - model.ModerationReport: Findings, score, rating and recommendation.
func (m *ContentModerationEngine) Moderate(text string, keyframes []model.Keyframe, detections []model.DetectionResult, language string, cache *FrameCache) model.ModerationReport {
	code := m.lexicon.ResolveLanguage(language)
	report := model.ModerationReport{
		Findings:           []model.ModerationFinding{},
		Language:           language,
		ModerationLanguage: code,
	}

	m.moderateText(&report, text, code)
	m.moderateDetections(&report, detections)

	report.AverageBrightness = m.averageBrightness(keyframes, cache)
	if report.AverageBrightness < DarkLuminanceThreshold {
		report.Findings = append(report.Findings, model.ModerationFinding{
			Category: model.CategoryDarkContent,
			Severity: model.SeverityLow,
			Count:    1,
			Evidence: []string{darkEvidence},
			Source:   model.SourceKeyframes,
		})
		report.SeverityScore += DarkContentPenalty
	}

	report.TotalFlags = len(report.Findings)
	report.Rating, report.Recommendation = Rate(report.SeverityScore)
	report.IsSafe = report.SeverityScore <= CautionAbove
	return report
}

// Rate maps a severity score to a rating and a recommendation.
func Rate(score int) (string, string) {
	switch {
	case score > NotSafeAbove:
		return model.RatingNotSafe, "Content requires moderation and age restriction"
	case score > CautionAbove:
		return model.RatingCaution, "Content may require age verification"
	default:
		return model.RatingSafe, "Content is suitable for general audiences"
	}
}

type textRule struct {
	category model.ModerationCategory
	severity model.Severity
	weight   int
	words    func(WordLists) []string
}

var textRules = []textRule{
	{model.CategoryProfanity, model.SeverityMedium, ProfanityWeight, func(w WordLists) []string { return w.Profanity }},
	{model.CategoryViolence, model.SeverityHigh, ViolenceWeight, func(w WordLists) []string { return w.Violence }},
	{model.CategoryAdultContent, model.SeverityHigh, AdultWeight, func(w WordLists) []string { return w.Adult }},
}

func (m *ContentModerationEngine) moderateText(report *model.ModerationReport, text string, code string) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return
	}
	tokens := wordPattern.FindAllString(lower, -1)
	base := m.lexicon.DefaultLanguage
	substring := code != base && m.lexicon.matchesBySubstring(code)

	for _, rule := range textRules {
		var matches []string
		local := rule.words(m.lexicon.Languages[code])
		if substring {
			matches = append(matches, matchTokens(tokens, toSet(rule.words(m.lexicon.Languages[base])))...)
			matches = append(matches, matchSubstrings(lower, local)...)
		} else {
			set := toSet(local)
			if code != base {
				for _, w := range rule.words(m.lexicon.Languages[base]) {
					set[w] = struct{}{}
				}
			}
			matches = matchTokens(tokens, set)
		}
		if len(matches) == 0 {
			continue
		}
		report.Findings = append(report.Findings, model.ModerationFinding{
			Category: rule.category,
			Severity: rule.severity,
			Count:    len(matches),
			Evidence: uniqueFirst(matches, MaxEvidence),
			Source:   model.SourceTranscript,
		})
		report.SeverityScore += rule.weight * len(matches)
	}
}

func (m *ContentModerationEngine) moderateDetections(report *model.ModerationReport, detections []model.DetectionResult) {
	weapons := toSet(m.lexicon.WeaponLabels)

	var weaponEvidence, captionEvidence []string
	weaponCount, captionCount := 0, 0
	for _, d := range detections {
		for _, obj := range d.Objects {
			if obj.Confidence < WeaponMinConfidence {
				continue
			}
			if _, ok := weapons[strings.ToLower(strings.TrimSpace(obj.Label))]; ok {
				weaponCount++
				weaponEvidence = append(weaponEvidence, fmt.Sprintf("%s (%.2f) in scene %d", obj.Label, obj.Confidence, d.SceneIndex))
			}
		}

		caption := strings.ToLower(d.Caption)
		hit := false
		for _, k := range m.lexicon.NSFWCaptionKeywords {
			if strings.Contains(caption, k) {
				captionEvidence = append(captionEvidence, k)
				hit = true
			}
		}
		if hit {
			captionCount++
		}
	}

	if weaponCount > 0 {
		report.Findings = append(report.Findings, model.ModerationFinding{
			Category: model.CategoryViolence,
			Severity: model.SeverityHigh,
			Count:    weaponCount,
			Evidence: uniqueFirst(weaponEvidence, MaxEvidence),
			Source:   model.SourceDetections,
		})
		report.SeverityScore += WeaponWeight * weaponCount
	}
	if captionCount > 0 {
		report.Findings = append(report.Findings, model.ModerationFinding{
			Category: model.CategoryNSFW,
			Severity: model.SeverityHigh,
			Count:    captionCount,
			Evidence: uniqueFirst(captionEvidence, MaxEvidence),
			Source:   model.SourceCaptions,
		})
		report.SeverityScore += NSFWCaptionWeight * captionCount
	}
}

// averageBrightness is the mean luminance of the first DarkSampleSize
// readable keyframes, or DefaultLuminance when none can be read.
func (m *ContentModerationEngine) averageBrightness(keyframes []model.Keyframe, cache *FrameCache) float64 {
	sample := keyframes
	if len(sample) > DarkSampleSize {
		sample = sample[:DarkSampleSize]
	}
	var sum float64
	var n int
	for _, kf := range sample {
		img, err := cache.Load(kf.ImageRef)
		if err != nil {
			m.logger.Debug("skipping unreadable keyframe", "path", kf.ImageRef, "error", err)
			continue
		}
		sum += MeanLuminance(img)
		n++
	}
	if n == 0 {
		return DefaultLuminance
	}
	return sum / float64(n)
}

func matchTokens(tokens []string, set map[string]struct{}) []string {
	var out []string
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// matchSubstrings counts every occurrence of each word in text, returning the
// matches ordered by position.
func matchSubstrings(text string, words []string) []string {
	type hit struct {
		pos  int
		word string
	}
	var hits []hit
	for _, w := range words {
		if w == "" {
			continue
		}
		for offset := 0; ; {
			i := strings.Index(text[offset:], w)
			if i < 0 {
				break
			}
			hits = append(hits, hit{offset + i, w})
			offset += i + len(w)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.word
	}
	return out
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func uniqueFirst(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, limit)
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}
