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

// This file defines BaseChain, the sequential Chain implementation.
//
// For each command the chain:
//  1. stops when the Go context is done, recording the cancellation under
//     CtxCancelled;
//  2. stops when an earlier command recorded an error, unless the chain
//     continues on failure;
//  3. opens a child span, notifies observers and runs the command when its
//     precondition holds;
//  4. moves CtxOut to CtxIn so the next command sees the previous output.
package cor

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// BaseChain runs its commands one after the other on the caller's goroutine.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool
	commands          []Command
	observers         []ChainObserver
}

// NewBaseChain creates an empty chain named name.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// ContinueOnFailure sets whether recorded errors stop the chain.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// AddCommand appends command to the chain.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// AddObserver registers observer. Nil observers are ignored.
func (c *BaseChain) AddObserver(observer ChainObserver) Chain {
	if observer != nil {
		c.observers = append(c.observers, observer)
	}
	return c
}

// Commands returns the commands in execution order.
func (c *BaseChain) Commands() []Command {
	return c.commands
}

// IsExecutable only requires a Go context; a chain has no input of its own.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil
}

// Execute runs the chain.
//
// Inputs:
//   - chCtx: The shared workflow Context. Its Go context is restored to the
//     caller's value before Execute returns.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()
	defer chCtx.SetContext(parentCtx)

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		if err := outerCtx.Err(); err != nil {
			chCtx.AddError(CtxCancelled, fmt.Errorf("%s cancelled before %s: %w", c.GetName(), command.GetName(), err))
			break
		}
		if chCtx.HasErrors() && !c.continueOnFailure {
			break
		}

		commandCtx, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
		errorsBefore := len(chCtx.GetErrors())

		executed := command.IsExecutable(chCtx)
		start := time.Now()
		if executed {
			c.notifyStarted(command, chCtx)
			chCtx.SetContext(commandCtx)
			c.execute(command, chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			commandSpan.SetAttributes(attribute.Bool("skipped", true))
		}
		elapsed := time.Since(start)
		c.notifyFinished(command, chCtx, executed, elapsed)

		failed := len(chCtx.GetErrors()) > errorsBefore
		if failed {
			commandSpan.SetStatus(codes.Error, "command recorded an error")
			addCounter(command.GetErrorCounter(), chCtx, command.GetName())
		} else {
			commandSpan.SetStatus(codes.Ok, "")
			if executed {
				addCounter(command.GetSuccessCounter(), chCtx, command.GetName())
			}
		}
		commandSpan.End()

		out := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if out != nil {
			chCtx.Add(CtxIn, out)
		}
		chCtx.Remove(CtxOut)
	}

	if chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	} else {
		chainSpan.SetStatus(codes.Ok, "")
	}
}

// execute runs one command. A panic never leaves the chain: it is handed to
// the command when it implements PanicRecoverer and recorded as the command's
// error otherwise.
func (c *BaseChain) execute(command Command, chCtx Context) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if recoverer, ok := command.(PanicRecoverer); ok {
			recoverer.Recover(chCtx, r)
			return
		}
		chCtx.AddError(command.GetName(), fmt.Errorf("%s panicked: %v", command.GetName(), r))
	}()
	command.Execute(chCtx)
}

func (c *BaseChain) notifyStarted(command Command, chCtx Context) {
	for _, o := range c.observers {
		o.CommandStarted(command, chCtx)
	}
}

func (c *BaseChain) notifyFinished(command Command, chCtx Context, executed bool, elapsed time.Duration) {
	for _, o := range c.observers {
		o.CommandFinished(command, chCtx, executed, elapsed)
	}
}

func addCounter(counter metric.Int64Counter, chCtx Context, name string) {
	if counter == nil {
		return
	}
	counter.Add(chCtx.GetContext(), 1, metric.WithAttributes(attribute.String("command", name)))
}
