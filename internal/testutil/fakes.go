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

package test

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

// FakeBoundaryDetector returns canned boundaries.
type FakeBoundaryDetector struct {
	Boundaries    []float64
	Err           error
	LastThreshold float64
}

func (f *FakeBoundaryDetector) DetectBoundaries(_ context.Context, _ string, threshold float64) ([]float64, error) {
	f.LastThreshold = threshold
	return f.Boundaries, f.Err
}

// FakeDecoder hands out independent handles whose frames come from Frame.
// It records how many handles were open at the same time.
type FakeDecoder struct {
	// Frame returns the image for a frame index. Nil means a mid-gray frame.
	Frame func(frameIndex int64) (image.Image, error)
	// FailOpen makes Open fail.
	FailOpen error

	mu       sync.Mutex
	seeks    []int64
	opened   int32
	open     int32
	peakOpen int32
}

func (d *FakeDecoder) Open(_ context.Context, _ string, _ float64) (media.FrameHandle, error) {
	if d.FailOpen != nil {
		return nil, d.FailOpen
	}
	atomic.AddInt32(&d.opened, 1)
	n := atomic.AddInt32(&d.open, 1)
	d.mu.Lock()
	if n > d.peakOpen {
		d.peakOpen = n
	}
	d.mu.Unlock()
	return &fakeHandle{decoder: d, frame: -1}, nil
}

// Seeks returns every frame index sought, in call order.
func (d *FakeDecoder) Seeks() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.seeks...)
}

// Opened is the number of handles created.
func (d *FakeDecoder) Opened() int {
	return int(atomic.LoadInt32(&d.opened))
}

// PeakOpen is the largest number of simultaneously open handles.
func (d *FakeDecoder) PeakOpen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.peakOpen)
}

// StillOpen is the number of handles not yet released.
func (d *FakeDecoder) StillOpen() int {
	return int(atomic.LoadInt32(&d.open))
}

type fakeHandle struct {
	decoder  *FakeDecoder
	frame    int64
	released bool
}

func (h *fakeHandle) Seek(frameIndex int64) error {
	h.decoder.mu.Lock()
	h.decoder.seeks = append(h.decoder.seeks, frameIndex)
	h.decoder.mu.Unlock()
	h.frame = frameIndex
	return nil
}

func (h *fakeHandle) Decode() (image.Image, error) {
	if h.frame < 0 {
		return nil, errors.New("decode before seek")
	}
	if h.decoder.Frame == nil {
		return SolidImage(64, 36, 128), nil
	}
	return h.decoder.Frame(h.frame)
}

func (h *fakeHandle) Release() {
	if !h.released {
		h.released = true
		atomic.AddInt32(&h.decoder.open, -1)
	}
}
