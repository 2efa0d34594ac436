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

// Package model defines the core data structures for the application.
// This file, `transient.go`, contains types that only live for the duration of
// a workflow execution: progress notifications and typed collaborator outcomes.
// None of them are part of the persisted report.
package model

import "time"

// Progress is a side-channel notification emitted after each stage.
type Progress struct {
	RunID    string    `json:"run_id"`
	Stage    string    `json:"stage"`
	Message  string    `json:"message"`
	Fraction float64   `json:"fraction"`
	State    RunState  `json:"state"`
	Time     time.Time `json:"time"`
}

// ProgressSink receives progress notifications. Implementations must not
// block the pipeline for long.
type ProgressSink interface {
	Report(progress Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(progress Progress)

// Report calls f(progress).
func (f ProgressFunc) Report(progress Progress) {
	f(progress)
}

// ProgressSinks fans a notification out to several sinks.
type ProgressSinks []ProgressSink

// Report forwards progress to every non-nil sink.
func (s ProgressSinks) Report(progress Progress) {
	for _, sink := range s {
		if sink != nil {
			sink.Report(progress)
		}
	}
}

// AudioOutcome is the typed result of the audio extraction collaborator:
// either a path to a mono 16kHz WAV, or the reason there is none.
type AudioOutcome struct {
	Path   string
	Reason string
}

// AudioExtracted builds a success outcome.
func AudioExtracted(path string) AudioOutcome {
	return AudioOutcome{Path: path}
}

// AudioUnavailable builds a failure outcome.
func AudioUnavailable(reason string) AudioOutcome {
	return AudioOutcome{Reason: reason}
}

// OK reports whether audio is available.
func (a AudioOutcome) OK() bool {
	return a.Path != "" && a.Reason == ""
}

// ClipOutcome is the typed result of cutting or concatenating video clips.
type ClipOutcome struct {
	Path   string
	Reason string
}

// OK reports whether the clip was produced.
func (c ClipOutcome) OK() bool {
	return c.Path != "" && c.Reason == ""
}
