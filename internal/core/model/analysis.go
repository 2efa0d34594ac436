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

package model

// TranscriptStatus distinguishes "worked but found nothing" from "crashed".
type TranscriptStatus string

const (
	TranscriptSuccess  TranscriptStatus = "success"
	TranscriptNoSpeech TranscriptStatus = "no_speech"
	TranscriptNoAudio  TranscriptStatus = "no_audio"
	TranscriptError    TranscriptStatus = "error"
	TranscriptSkipped  TranscriptStatus = "skipped"
)

// TranscriptSegment is one timed piece of recognised speech.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the transcription stage output.
type Transcript struct {
	Text             string              `json:"text"`
	Segments         []TranscriptSegment `json:"segments"`
	DetectedLanguage string              `json:"detected_language"`
	Confidence       float64             `json:"confidence"`
	Status           TranscriptStatus    `json:"status"`
	Error            string              `json:"error,omitempty"`
}

// EmptyTranscript returns the placeholder used when no text could be produced.
func EmptyTranscript(status TranscriptStatus, language string) Transcript {
	return Transcript{Segments: []TranscriptSegment{}, DetectedLanguage: language, Status: status}
}

// Sentiment labels produced by the text insights stage.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// TextInsights is the summarization stage output.
type TextInsights struct {
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points"`
	Topics         []string `json:"topics"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore float64  `json:"sentiment_score"`
	WordCount      int      `json:"word_count"`
	SentenceCount  int      `json:"sentence_count"`
	Backend        string   `json:"backend"`
}

// NoSpeechSummary is the summary text used when the transcript is empty.
const NoSpeechSummary = "No speech detected in video."

// EmptyTextInsights returns the placeholder summary for empty input.
func EmptyTextInsights() TextInsights {
	return TextInsights{
		Summary:   NoSpeechSummary,
		KeyPoints: []string{},
		Topics:    []string{},
		Sentiment: SentimentNeutral,
	}
}

// AudioProperties are measured on the extracted mono WAV.
type AudioProperties struct {
	Duration     float64 `json:"duration"`
	SampleRate   int     `json:"sample_rate"`
	Channels     int     `json:"channels"`
	BitDepth     int     `json:"bit_depth"`
	LoudnessDBFS float64 `json:"loudness_dbfs"`
	MaxAmplitude float64 `json:"max_amplitude"`
	FileSizeMB   float64 `json:"file_size_mb"`
	QualityScore int     `json:"quality_score"`
}

// AudioReport groups the audio stage outputs.
type AudioReport struct {
	Extracted  bool             `json:"extracted"`
	Path       string           `json:"path,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Properties *AudioProperties `json:"properties,omitempty"`
	Waveform   string           `json:"waveform,omitempty"`
}

// ModerationCategory enumerates the flagged content classes.
type ModerationCategory string

const (
	CategoryProfanity    ModerationCategory = "Profanity"
	CategoryViolence     ModerationCategory = "Violence"
	CategoryAdultContent ModerationCategory = "AdultContent"
	CategoryDarkContent  ModerationCategory = "DarkContent"
	CategoryNSFW         ModerationCategory = "NSFW"
)

// Severity of a moderation finding.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Evidence sources.
const (
	SourceTranscript = "transcript"
	SourceDetections = "detections"
	SourceCaptions   = "captions"
	SourceKeyframes  = "keyframes"
)

// ModerationFinding is one flagged category with its evidence.
type ModerationFinding struct {
	Category ModerationCategory `json:"category"`
	Severity Severity           `json:"severity"`
	Count    int                `json:"count"`
	Evidence []string           `json:"evidence"`
	Source   string             `json:"source"`
}

// Content ratings.
const (
	RatingSafe    = "Safe"
	RatingCaution = "Caution"
	RatingNotSafe = "Not Safe"
)

// ModerationReport is the moderation stage output.
type ModerationReport struct {
	Findings           []ModerationFinding `json:"findings"`
	SeverityScore      int                 `json:"severity_score"`
	Rating             string              `json:"rating"`
	Recommendation     string              `json:"recommendation"`
	IsSafe             bool                `json:"is_safe"`
	TotalFlags         int                 `json:"total_flags"`
	Language           string              `json:"language"`
	ModerationLanguage string              `json:"moderation_language"`
	AverageBrightness  float64             `json:"average_brightness"`
}

// QualityReport is the quality scoring stage output.
type QualityReport struct {
	Resolution     string  `json:"resolution"`
	ResolutionTier string  `json:"resolution_tier"`
	FPS            float64 `json:"fps"`
	FPSTier        string  `json:"fps_tier"`
	Sharpness      float64 `json:"sharpness"`
	SharpnessTier  string  `json:"sharpness_tier"`
	Score          int     `json:"score"`
	Rating         string  `json:"rating"`
}

// SummaryVideo describes the condensed clip produced from the top scenes.
type SummaryVideo struct {
	Path     string `json:"path,omitempty"`
	Scenes   []int  `json:"scenes"`
	Fallback bool   `json:"fallback"`
}
