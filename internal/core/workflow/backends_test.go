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

package workflow_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/analysis"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/services"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-video-insight/internal/testutil"
)

func TestNewCollaboratorsDefaults(t *testing.T) {
	config := cloud.NewConfig()
	c, err := workflow.NewCollaborators(config, (*cloud.ServiceClients)(nil), nil, nil)
	require.NoError(t, err)

	assert.IsType(t, &services.BasicCaptioner{}, c.Detector)
	assert.Nil(t, c.Transcriber)
	assert.IsType(t, &analysis.Extractive{}, c.Summarizer)
	assert.Nil(t, c.Lexicon)
	assert.NotNil(t, c.Decoder)
}

func TestNewCollaboratorsOpenAI(t *testing.T) {
	config := cloud.NewConfig()
	config.Backends.Summarizer = cloud.BackendOpenAI
	config.OpenAI = cloud.OpenAI{BaseURL: "http://localhost:11434/v1", Model: "llama3"}

	c, err := workflow.NewCollaborators(config, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, services.OpenAIBackend, c.Summarizer.Name())

	config.OpenAI.Model = ""
	_, err = workflow.NewCollaborators(config, nil, nil, nil)
	assert.Error(t, err)
}

func TestNewCollaboratorsRequiresGeminiModels(t *testing.T) {
	for _, set := range []func(*cloud.Backends){
		func(b *cloud.Backends) { b.Detector = cloud.BackendGemini },
		func(b *cloud.Backends) { b.Transcriber = cloud.BackendGemini },
		func(b *cloud.Backends) { b.Summarizer = cloud.BackendGemini },
	} {
		config := cloud.NewConfig()
		set(&config.Backends)
		_, err := workflow.NewCollaborators(config, (*cloud.ServiceClients)(nil), nil, nil)
		assert.ErrorContains(t, err, "needs agent model")
	}
}

func TestNewCollaboratorsRejectsUnknownBackends(t *testing.T) {
	config := cloud.NewConfig()
	config.Backends.Detector = "yolo"
	_, err := workflow.NewCollaborators(config, nil, nil, nil)
	assert.ErrorContains(t, err, "unknown detector backend")
}

func TestNewCollaboratorsLoadsLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("languages:\n  en:\n    profanity: [\"darn\"]\n"), 0o644))

	config := cloud.NewConfig()
	config.Moderation.LexiconPath = path
	c, err := workflow.NewCollaborators(config, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, c.Lexicon)

	config.Moderation.LexiconPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = workflow.NewCollaborators(config, nil, nil, nil)
	assert.Error(t, err)
}

func TestRepositoryConfigBuildsCollaborators(t *testing.T) {
	config := test.GetConfig(t)
	assert.Equal(t, cloud.BackendBasic, config.Backends.Detector)
	assert.Equal(t, "UploadTopic", firstKey(config.TopicSubscriptions))
	assert.Equal(t, 27.0, config.Pipeline.SceneThreshold)

	_, err := workflow.NewCollaborators(config, (*cloud.ServiceClients)(nil), nil, nil)
	assert.NoError(t, err)
}

func firstKey(m map[string]cloud.TopicSubscription) string {
	for k := range m {
		return k
	}
	return ""
}
