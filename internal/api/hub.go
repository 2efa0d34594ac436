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

package api

import (
	"sync"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/workflow"
)

const subscriberBuffer = 32

// Hub fans pipeline progress out to the websocket subscribers of each run.
// Report never blocks: a subscriber whose buffer is full misses the
// notification.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan model.Progress]struct{}
	last map[string]model.Progress
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan model.Progress]struct{}),
		last: make(map[string]model.Progress),
	}
}

// Report implements model.ProgressSink.
func (h *Hub) Report(progress model.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[progress.RunID] = progress
	for ch := range h.subs[progress.RunID] {
		select {
		case ch <- progress:
		default:
		}
	}
}

// Subscribe registers a listener for runID. The latest known notification,
// if any, is delivered first. The returned function unsubscribes and closes
// the channel.
func (h *Hub) Subscribe(runID string) (<-chan model.Progress, func()) {
	ch := make(chan model.Progress, subscriberBuffer)

	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan model.Progress]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	if p, ok := h.last[runID]; ok {
		ch <- p
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[runID], ch)
			if len(h.subs[runID]) == 0 {
				delete(h.subs, runID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Last returns the latest notification of runID.
func (h *Hub) Last(runID string) (model.Progress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.last[runID]
	return p, ok
}

// Forget drops the retained notification of a run.
func (h *Hub) Forget(runID string) {
	h.mu.Lock()
	delete(h.last, runID)
	h.mu.Unlock()
}

// IsFinal reports whether p is the last notification of its run.
func IsFinal(p model.Progress) bool {
	return p.Stage == workflow.StageDone
}
