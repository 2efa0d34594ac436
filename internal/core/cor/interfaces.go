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

// Package cor (Chain of Responsibility) is the small workflow runtime the
// analysis pipeline is built on. A workflow is a Chain of Commands that share a
// single Context. Commands read their inputs from the Context, write their
// outputs back to it, and report run-terminating failures with AddError.
//
// The runtime knows nothing about video. Stage bookkeeping, progress and
// degraded results are the business of the commands; the chain only decides
// whether the next command may run.
package cor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Well-known Context keys.
const (
	// CtxIn holds the primary input of the next command. BaseChain fills it
	// with whatever the previous command left in CtxOut.
	CtxIn = "__IN__"
	// CtxOut is where a command leaves its primary output.
	CtxOut = "__OUT__"
	// CtxCancelled is the error key used when the Go context was cancelled
	// between two commands.
	CtxCancelled = "__CANCELLED__"
)

// Context is the property bag shared by every command of one workflow
// execution. Implementations are not safe for concurrent use; a workflow owns
// its Context exclusively.
type Context interface {
	// SetContext replaces the Go context carried for cancellation and tracing.
	SetContext(context context.Context)

	// GetContext returns the Go context of the currently executing command.
	GetContext() context.Context

	// Add stores a value and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records a failure under key, usually the command name. Any
	// recorded error stops a chain that does not continue on failure.
	AddError(key string, err error)

	// GetErrors returns every recorded error keyed by its producer.
	GetErrors() map[string]error

	// Err joins the recorded errors in key order, or returns nil.
	Err() error

	// Get returns the value stored under key, or nil.
	Get(key string) interface{}

	// Remove deletes key.
	Remove(key string)

	// HasErrors reports whether any error was recorded.
	HasErrors() bool

	// AddTempFile registers a file or directory to delete on Close.
	AddTempFile(file string)

	// GetTempFiles lists the registered temporary paths.
	GetTempFiles() []string

	// Close removes the registered temporary paths.
	Close()
}

// Executable is anything with a unit of work.
type Executable interface {
	Execute(context Context)
}

// Command is one step of a workflow.
type Command interface {
	Executable

	// GetName identifies the command in spans, metrics and error keys.
	GetName() string

	// GetInputParam is the Context key the command reads its input from.
	GetInputParam() string

	// GetOutputParam is the Context key the command writes its output to.
	GetOutputParam() string

	// IsExecutable is the precondition checked before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is a Command that runs other commands in order. Chains nest.
type Chain interface {
	Command

	// ContinueOnFailure makes the chain keep going after a command records an
	// error. Cancellation of the Go context always stops the chain.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command.
	AddCommand(command Command) Chain

	// AddObserver registers a listener for command boundaries.
	AddObserver(observer ChainObserver) Chain
}

// ChainObserver is notified around every command a chain runs or skips.
// Observers run on the chain's goroutine and must return quickly.
type ChainObserver interface {
	// CommandStarted is called before Execute.
	CommandStarted(command Command, context Context)

	// CommandFinished is called after Execute, or with executed=false when the
	// command's precondition did not hold.
	CommandFinished(command Command, context Context, executed bool, elapsed time.Duration)
}

// PanicRecoverer is implemented by commands that decide for themselves how a
// panic raised inside Execute is recorded. A chain turns the panic of any
// other command into an error on the context.
type PanicRecoverer interface {
	Recover(context Context, value interface{})
}
