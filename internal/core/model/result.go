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

import "fmt"

// ErrorKind separates run-terminating errors from absorbed stage failures.
type ErrorKind string

const (
	KindFatal    ErrorKind = "fatal"
	KindDegraded ErrorKind = "degraded"
)

// StageError is the error half of a stage Result.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error terminates the run.
func (e *StageError) IsFatal() bool {
	return e != nil && e.Kind == KindFatal
}

// Fatal wraps cause as a run-terminating stage error.
func Fatal(stage string, cause error) *StageError {
	return &StageError{Stage: stage, Kind: KindFatal, Cause: cause}
}

// Result is a stage outcome. A degraded result still carries a usable
// placeholder Value so downstream stages never see a missing field.
type Result[T any] struct {
	Value T
	Err   *StageError
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Degraded wraps a placeholder value with the cause of the degradation.
func Degraded[T any](stage string, placeholder T, cause error) Result[T] {
	return Result[T]{Value: placeholder, Err: &StageError{Stage: stage, Kind: KindDegraded, Cause: cause}}
}

// Failed wraps a fatal error; Value is the zero value.
func Failed[T any](stage string, cause error) Result[T] {
	return Result[T]{Err: Fatal(stage, cause)}
}

// Status maps the result onto the StageStatus recorded on the run.
func (r Result[T]) Status() StageStatus {
	switch {
	case r.Err == nil:
		return StageCompleted
	case r.Err.IsFatal():
		return StageFailed
	default:
		return StageDegraded
	}
}
