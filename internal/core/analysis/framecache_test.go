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

package analysis_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	test "github.com/jaycherian/gcp-go-video-insight/internal/testutil"
)

func TestFrameCacheLoadsOnMiss(t *testing.T) {
	path := test.WriteJPEG(t, filepath.Join(t.TempDir(), "frame.jpg"), test.SolidImage(16, 8, 60))
	cache := analysis.NewFrameCache()

	img, err := cache.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, os.Remove(path))
	_, err = cache.Load(path)
	assert.NoError(t, err, "second load must come from the cache")

	cache.Clear()
	assert.Zero(t, cache.Len())
	_, err = cache.Load(path)
	assert.Error(t, err)
}

func TestNilFrameCacheReadsFromDisk(t *testing.T) {
	var cache *analysis.FrameCache
	path := test.WriteJPEG(t, filepath.Join(t.TempDir(), "frame.jpg"), test.SolidImage(4, 4, 60))

	_, err := cache.Load(path)
	assert.NoError(t, err)
	assert.Zero(t, cache.Len())
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "report.json")

	require.NoError(t, analysis.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "{}")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	boom := errors.New("encoder failed")
	err = analysis.WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "{\"partial\":")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data), "a failed write must not replace the previous file")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}
