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

package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSortsOutcomesAndCapturesErrors(t *testing.T) {
	pool := workerpool.New("test", 4)
	tasks := make([]workerpool.Task[int], 0, 8)
	for i := 7; i >= 0; i-- {
		id := i
		tasks = append(tasks, workerpool.Task[int]{ID: id, Run: func(ctx context.Context) (int, error) {
			// Later IDs finish first.
			time.Sleep(time.Duration(8-id) * time.Millisecond)
			if id == 3 {
				return 0, errors.New("corrupt frame")
			}
			return id * 10, nil
		}})
	}

	outcomes := workerpool.Run(context.Background(), pool, tasks)

	require.Len(t, outcomes, 8)
	for i, o := range outcomes {
		assert.Equal(t, i, o.ID)
		if i == 3 {
			assert.EqualError(t, o.Err, "corrupt frame")
			continue
		}
		assert.NoError(t, o.Err)
		assert.Equal(t, i*10, o.Value)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	pool := workerpool.New("test", 2)
	var running, peak int32
	tasks := make([]workerpool.Task[struct{}], 6)
	for i := range tasks {
		tasks[i] = workerpool.Task[struct{}]{ID: i, Run: func(ctx context.Context) (struct{}, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return struct{}{}, nil
		}}
	}

	workerpool.Run(context.Background(), pool, tasks)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunRecoversPanics(t *testing.T) {
	outcomes := workerpool.Run(context.Background(), workerpool.New("test", 1), []workerpool.Task[string]{
		{ID: 0, Run: func(ctx context.Context) (string, error) { panic("decoder crashed") }},
		{ID: 1, Run: func(ctx context.Context) (string, error) { return "ok", nil }},
	})

	require.Len(t, outcomes, 2)
	assert.ErrorContains(t, outcomes[0].Err, "decoder crashed")
	assert.Equal(t, "ok", outcomes[1].Value)
}

func TestRunSkipsTasksAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	outcomes := workerpool.Run(ctx, workerpool.New("test", 2), []workerpool.Task[int]{
		{ID: 0, Run: func(ctx context.Context) (int, error) { atomic.AddInt32(&calls, 1); return 1, nil }},
		{ID: 1, Run: func(ctx context.Context) (int, error) { atomic.AddInt32(&calls, 1); return 1, nil }},
	})

	assert.Zero(t, atomic.LoadInt32(&calls))
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	assert.Empty(t, workerpool.Run[int](context.Background(), workerpool.New("test", 0), nil))
	assert.Equal(t, workerpool.DefaultSize, workerpool.New("test", 0).Size())
}
