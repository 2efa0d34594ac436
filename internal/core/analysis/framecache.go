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

package analysis

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// FrameCache holds the decoded keyframes of one run so that moderation and
// quality scoring do not decode the same JPEG twice. It is created when a run
// starts and dropped when it ends; there is no process-wide cache.
type FrameCache struct {
	mu     sync.Mutex
	images map[string]image.Image
}

// NewFrameCache returns an empty cache.
func NewFrameCache() *FrameCache {
	return &FrameCache{images: make(map[string]image.Image)}
}

// Put stores img under ref. Safe for concurrent use.
func (c *FrameCache) Put(ref string, img image.Image) {
	if c == nil || img == nil {
		return
	}
	c.mu.Lock()
	c.images[ref] = img
	c.mu.Unlock()
}

// Load returns the image for ref, decoding it from disk on a miss.
func (c *FrameCache) Load(ref string) (image.Image, error) {
	if c != nil {
		c.mu.Lock()
		img, ok := c.images[ref]
		c.mu.Unlock()
		if ok {
			return img, nil
		}
	}

	f, err := os.Open(ref)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	c.Put(ref, img)
	return img, nil
}

// Len is the number of cached images.
func (c *FrameCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// Clear drops every cached image.
func (c *FrameCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}
