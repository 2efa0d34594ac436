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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	test "github.com/jaycherian/gcp-go-video-insight/internal/testutil"
)

type ModerationSuite struct {
	suite.Suite
	engine *analysis.ContentModerationEngine
}

func (s *ModerationSuite) SetupSuite() {
	lexicon, err := analysis.DefaultLexicon()
	s.Require().NoError(err)
	s.engine = analysis.NewContentModerationEngine(lexicon, nil)
}

func (s *ModerationSuite) finding(report model.ModerationReport, category model.ModerationCategory, source string) (model.ModerationFinding, bool) {
	for _, f := range report.Findings {
		if f.Category == category && f.Source == source {
			return f, true
		}
	}
	return model.ModerationFinding{}, false
}

func (s *ModerationSuite) TestCleanTranscriptIsSafe() {
	report := s.engine.Moderate("Welcome to the cooking show, today we bake bread.", nil, nil, "en-US", nil)

	s.Empty(report.Findings)
	s.Zero(report.SeverityScore)
	s.Equal(model.RatingSafe, report.Rating)
	s.True(report.IsSafe)
	s.Equal(analysis.DefaultLuminance, report.AverageBrightness)
	s.Equal("en", report.ModerationLanguage)
	s.Equal("en-US", report.Language)
}

func (s *ModerationSuite) TestProfanityCountsEveryOccurrence() {
	report := s.engine.Moderate("This is shit. Damn, that shit again!", nil, nil, "en", nil)

	f, ok := s.finding(report, model.CategoryProfanity, model.SourceTranscript)
	s.Require().True(ok)
	s.Equal(3, f.Count)
	s.Equal(model.SeverityMedium, f.Severity)
	s.Equal([]string{"shit", "damn"}, f.Evidence)
	s.Equal(3*analysis.ProfanityWeight, report.SeverityScore)
	s.Equal(1, report.TotalFlags)
}

func (s *ModerationSuite) TestNonEnglishUsesLocalAndEnglishLists() {
	report := s.engine.Moderate("Vamos a matar con la pistola, what the fuck", nil, nil, "es-ES", nil)

	s.Equal("es", report.ModerationLanguage)
	violence, ok := s.finding(report, model.CategoryViolence, model.SourceTranscript)
	s.Require().True(ok)
	s.Equal(2, violence.Count)
	s.Equal([]string{"matar", "pistola"}, violence.Evidence)

	profanity, ok := s.finding(report, model.CategoryProfanity, model.SourceTranscript)
	s.Require().True(ok)
	s.Equal(1, profanity.Count)

	s.Equal(2*analysis.ViolenceWeight+analysis.ProfanityWeight, report.SeverityScore)
}

func (s *ModerationSuite) TestChineseMatchesBySubstring() {
	report := s.engine.Moderate("他拿着枪走了", nil, nil, "zh-CN", nil)

	s.Equal("zh", report.ModerationLanguage)
	violence, ok := s.finding(report, model.CategoryViolence, model.SourceTranscript)
	s.Require().True(ok)
	s.Equal(1, violence.Count)
	s.Equal([]string{"枪"}, violence.Evidence)
}

func (s *ModerationSuite) TestUnknownLanguageFallsBackToEnglish() {
	report := s.engine.Moderate("they kill", nil, nil, "xx-YY", nil)

	s.Equal("en", report.ModerationLanguage)
	s.Equal(analysis.ViolenceWeight, report.SeverityScore)
}

func (s *ModerationSuite) TestWeaponsAndCaptions() {
	detections := []model.DetectionResult{
		{
			SceneIndex: 0,
			Caption:    "A person holding a knife in a kitchen.",
			Objects: []model.DetectedObject{
				{Label: "Knife", Confidence: 0.92},
				{Label: "gun", Confidence: 0.5},
				{Label: "person", Confidence: 0.99},
			},
		},
		{SceneIndex: 1, Caption: "An empty street.", Objects: []model.DetectedObject{}},
	}
	report := s.engine.Moderate("", nil, detections, "en", nil)

	weapons, ok := s.finding(report, model.CategoryViolence, model.SourceDetections)
	s.Require().True(ok)
	s.Equal(1, weapons.Count)
	s.Equal([]string{"Knife (0.92) in scene 0"}, weapons.Evidence)

	nsfw, ok := s.finding(report, model.CategoryNSFW, model.SourceCaptions)
	s.Require().True(ok)
	s.Equal(1, nsfw.Count)
	s.Equal([]string{"knife"}, nsfw.Evidence)

	s.Equal(analysis.WeaponWeight+analysis.NSFWCaptionWeight, report.SeverityScore)
	s.Equal(2, report.TotalFlags)
}

func (s *ModerationSuite) TestDarkKeyframesAddPenalty() {
	dir := s.T().TempDir()
	var dark, bright []model.Keyframe
	for i := 0; i < 3; i++ {
		dark = append(dark, model.Keyframe{SceneIndex: i, ImageRef: test.WriteJPEG(s.T(), filepath.Join(dir, analysis.KeyframeName(i)), test.SolidImage(32, 32, 10))})
		bright = append(bright, model.Keyframe{SceneIndex: i, ImageRef: test.WriteJPEG(s.T(), filepath.Join(dir, "b", analysis.KeyframeName(i)), test.SolidImage(32, 32, 200))})
	}

	report := s.engine.Moderate("", dark, nil, "en", nil)
	f, ok := s.finding(report, model.CategoryDarkContent, model.SourceKeyframes)
	s.Require().True(ok)
	s.Equal(model.SeverityLow, f.Severity)
	s.Equal(analysis.DarkContentPenalty, report.SeverityScore)
	s.Less(report.AverageBrightness, analysis.DarkLuminanceThreshold)
	s.Equal(model.RatingSafe, report.Rating)

	report = s.engine.Moderate("", bright, nil, "en", analysis.NewFrameCache())
	s.Empty(report.Findings)
	s.InDelta(200, report.AverageBrightness, 3)
}

func (s *ModerationSuite) TestUnreadableKeyframesUseDefaultBrightness() {
	keyframes := []model.Keyframe{{ImageRef: filepath.Join(s.T().TempDir(), "missing.jpg")}}
	report := s.engine.Moderate("", keyframes, nil, "en", nil)

	s.Equal(analysis.DefaultLuminance, report.AverageBrightness)
	s.Empty(report.Findings)
}

func (s *ModerationSuite) TestHeavyViolenceIsNotSafe() {
	report := s.engine.Moderate("kill kill kill kill kill kill kill", nil, nil, "en", nil)

	s.Equal(7*analysis.ViolenceWeight, report.SeverityScore)
	s.Equal(model.RatingNotSafe, report.Rating)
	s.False(report.IsSafe)
}

func (s *ModerationSuite) TestAddingFlaggedWordsNeverLowersScore() {
	words := []string{"kill", "shit", "porn", "bread", "war", "hello", "nude", "damn"}
	text := "a calm evening"
	previous := s.engine.Moderate(text, nil, nil, "en", nil).SeverityScore
	for _, w := range words {
		text += " " + w
		score := s.engine.Moderate(text, nil, nil, "en", nil).SeverityScore
		s.GreaterOrEqual(score, previous, "adding %q lowered the score", w)
		previous = score
	}
}

func TestModerationSuite(t *testing.T) {
	suite.Run(t, new(ModerationSuite))
}

func TestRate(t *testing.T) {
	cases := []struct {
		score  int
		rating string
	}{
		{0, model.RatingSafe},
		{10, model.RatingSafe},
		{11, model.RatingCaution},
		{20, model.RatingCaution},
		{21, model.RatingNotSafe},
	}
	for _, c := range cases {
		rating, recommendation := analysis.Rate(c.score)
		assert.Equal(t, c.rating, rating, "score %d", c.score)
		require.NotEmpty(t, recommendation)
	}
}
