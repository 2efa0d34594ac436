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

package cloud

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/cor"
)

type scriptedModel struct {
	failures int
	calls    int
	text     string
}

func (m *scriptedModel) GenerateContent(_ context.Context, _ []*genai.Content) (*genai.GenerateContentResponse, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, errors.New("quota exceeded")
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: m.text}}}}},
	}, nil
}

func TestGenerateMultiModalResponseRetries(t *testing.T) {
	retryBackoff = time.Millisecond
	model := &scriptedModel{failures: 2, text: "```json\n{\"ok\":true}\n```"}

	out, err := GenerateMultiModalResponse(context.Background(), nil, nil, nil, model, NewUserContent(NewTextPart("hi")))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, 3, model.calls)
}

func TestGenerateMultiModalResponseGivesUp(t *testing.T) {
	retryBackoff = time.Millisecond
	model := &scriptedModel{failures: 10}

	_, err := GenerateMultiModalResponse(context.Background(), nil, nil, nil, model, NewUserContent(NewTextPart("hi")))
	assert.Error(t, err)
	assert.Equal(t, MaxRetries+1, model.calls)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("  {\"a\":1} "))
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json{\"a\":1}```"))
}

func TestParseGCSURI(t *testing.T) {
	bucket, name, err := ParseGCSURI("gs://videos/in/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "videos", bucket)
	assert.Equal(t, "in/clip.mp4", name)
	assert.Equal(t, "gs://videos/in/clip.mp4", GCSObject{Bucket: bucket, Name: name}.URI())

	_, _, err = ParseGCSURI("https://example.com/a")
	assert.Error(t, err)
	_, _, err = ParseGCSURI("gs://bucket-only")
	assert.Error(t, err)
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(`
[application]
name = "base"
thread_pool_size = 3

[pipeline]
max_scenes = 12
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.unit.toml"), []byte(`
[application]
name = "override"
`), 0o644))
	t.Setenv(EnvConfigFilePrefix, dir)
	t.Setenv(EnvConfigRuntime, "unit")

	config := NewConfig()
	require.NoError(t, LoadConfig(config))

	assert.Equal(t, "override", config.Application.Name)
	assert.Equal(t, 3, config.Application.ThreadPoolSize)
	assert.Equal(t, 12, config.Pipeline.MaxScenes)
	assert.True(t, config.Pipeline.EnableDetection, "defaults survive decoding")
}

func TestLoadConfigReportsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[application\nname="), 0o644))
	t.Setenv(EnvConfigFilePrefix, dir)
	t.Setenv(EnvConfigRuntime, "")

	assert.Error(t, LoadConfig(NewConfig()))
}

type recordingCommand struct {
	cor.BaseCommand
	fail bool
	seen string
}

func (c *recordingCommand) Execute(context cor.Context) {
	c.seen = context.Get(cor.CtxIn).(string)
	if c.fail {
		context.AddError(c.GetName(), errors.New("boom"))
	}
}

func TestHandleMessageAcksOnlyOnSuccess(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")

	ok := &recordingCommand{BaseCommand: *cor.NewBaseCommand("ok")}
	acked := false
	assert.True(t, HandleMessage(context.Background(), tracer, ok, "1", []byte("payload"), func() { acked = true }))
	assert.True(t, acked)
	assert.Equal(t, "payload", ok.seen)

	bad := &recordingCommand{BaseCommand: *cor.NewBaseCommand("bad"), fail: true}
	acked = false
	assert.False(t, HandleMessage(context.Background(), tracer, bad, "2", []byte("payload"), func() { acked = true }))
	assert.False(t, acked)

	assert.False(t, HandleMessage(context.Background(), tracer, nil, "3", nil, func() { acked = true }))
}
