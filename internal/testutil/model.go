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
	"strings"
	"sync"

	"google.golang.org/genai"
)

// FakeModel answers GenerateContent from Answer, which sees the text of the
// prompt. It records every prompt and the MIME types of the inline parts.
type FakeModel struct {
	Answer func(prompt string) string

	mu        sync.Mutex
	prompts   []string
	mimeTypes []string
}

func (m *FakeModel) GenerateContent(_ context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	var prompt strings.Builder
	m.mu.Lock()
	for _, c := range content {
		for _, p := range c.Parts {
			prompt.WriteString(p.Text)
			if p.InlineData != nil {
				m.mimeTypes = append(m.mimeTypes, p.InlineData.MIMEType)
			}
		}
	}
	m.prompts = append(m.prompts, prompt.String())
	m.mu.Unlock()

	answer := ""
	if m.Answer != nil {
		answer = m.Answer(prompt.String())
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: answer}}}}},
	}, nil
}

// Prompts returns the prompt texts in call order.
func (m *FakeModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// MIMETypes returns the MIME types of every inline part sent.
func (m *FakeModel) MIMETypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.mimeTypes...)
}
