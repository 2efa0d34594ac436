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

// Package model defines the data structures for the application. This file,
// `examples.go`, provides hardcoded example instances that are embedded in the
// generative model prompts as few-shot samples of the expected JSON output.
package model

// GetExampleDetection returns a sample detector/captioner answer for one
// keyframe. Scene index and timestamp are filled in by the caller, so they
// are left at zero here.
func GetExampleDetection() *DetectionResult {
	return &DetectionResult{
		Caption: "A man in a red jacket holds a coffee cup on a busy city street.",
		Objects: []DetectedObject{
			{Label: "person", Confidence: 0.97, Box: BoundingBox{112, 40, 388, 710}},
			{Label: "cup", Confidence: 0.81, Box: BoundingBox{301, 322, 352, 391}},
			{Label: "car", Confidence: 0.66, Box: BoundingBox{640, 410, 1010, 600}},
		},
	}
}

// GetExampleTranscript returns a sample transcription answer.
func GetExampleTranscript() *Transcript {
	return &Transcript{
		Text:             "Welcome back to the channel. Today we are testing three budget cameras.",
		DetectedLanguage: "en-US",
		Segments: []TranscriptSegment{
			{Start: 0.0, End: 2.4, Text: "Welcome back to the channel."},
			{Start: 2.4, End: 5.9, Text: "Today we are testing three budget cameras."},
		},
	}
}
