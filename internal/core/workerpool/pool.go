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

// Package workerpool runs a batch of independent tasks on a fixed number of
// goroutines and hands back one Outcome per task.
//
// Logic Flow:
//  1. Every task is queued on a buffered jobs channel, which is then closed.
//  2. Size workers drain the channel. Each task runs inside its own span and
//     a recover block, so a panic becomes that task's error.
//  3. Outcomes are sent on a buffered results channel. After the WaitGroup
//     completes the channel is closed and drained.
//  4. Outcomes are sorted by task ID before being returned, so the caller
//     never sees completion order.
//
// Tasks that have not started when the context is cancelled are not run;
// their Outcome carries the context error. Running tasks are never
// interrupted by the pool itself.
package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSize is used when a pool is created with a non-positive size.
const DefaultSize = 4

// Task is one unit of work. ID orders the outcomes and must be unique within a batch.
type Task[T any] struct {
	ID  int
	Run func(ctx context.Context) (T, error)
}

// Outcome is the result of a single task.
type Outcome[T any] struct {
	ID      int
	Value   T
	Err     error
	Elapsed time.Duration
}

// Pool is a reusable bounded pool description. It holds no goroutines between
// batches.
type Pool struct {
	name   string
	size   int
	tracer trace.Tracer
}

// New creates a pool of size workers. name prefixes the task spans.
func New(name string, size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{name: name, size: size, tracer: otel.Tracer(name)}
}

// Size is the number of concurrent workers.
func (p *Pool) Size() int {
	return p.size
}

// Run executes tasks and blocks until every one of them has an outcome.
//
// Inputs:
//   - ctx: Parent context for the task spans and for cancellation.
//   - p: The pool.
//   - tasks: The batch. An empty batch returns an empty slice.
//
// Outputs:
//   - []Outcome[T]: One outcome per task, sorted ascending by ID.
func Run[T any](ctx context.Context, p *Pool, tasks []Task[T]) []Outcome[T] {
	jobs := make(chan Task[T], len(tasks))
	results := make(chan Outcome[T], len(tasks))

	workers := p.size
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- execute(ctx, p, task)
			}
		}()
	}

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)

	wg.Wait()
	close(results)

	outcomes := make([]Outcome[T], 0, len(tasks))
	for r := range results {
		outcomes = append(outcomes, r)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].ID < outcomes[j].ID })
	return outcomes
}

func execute[T any](ctx context.Context, p *Pool, task Task[T]) (out Outcome[T]) {
	out.ID = task.ID
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	taskCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s_task_%d", p.name, task.ID))
	span.SetAttributes(attribute.Int("task.id", task.ID))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("task %d panicked: %v\n%s", task.ID, r, debug.Stack())
		}
		out.Elapsed = time.Since(start)
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, "task failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	out.Value, out.Err = task.Run(taskCtx)
	return out
}
