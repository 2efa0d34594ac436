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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files, and the clients used to reach Google Cloud services.
//
// This file centralizes all configuration-related structs.
//
// Structs:
//   - BigQueryDataSource: Dataset and table receiving the run reports.
//   - PromptTemplates: Text templates for the prompts sent to Gemini.
//   - VertexAiLLMModel: Configuration for a Vertex AI Large Language Model (LLM).
//   - TopicSubscription: Configuration for a single Pub/Sub topic subscription.
//   - Storage: Buckets used for ingestion and artifact upload.
//   - Backends: Which collaborator implementation serves each pipeline stage.
//   - Config: The top-level struct that aggregates all other configuration structs.
package cloud

import (
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

// Logical names of the agent models used by the pipeline.
const (
	ModelDetection     = "detection"
	ModelTranscription = "transcription"
	ModelSummary       = "summary"
)

// Backend names.
const (
	BackendGemini     = "gemini"
	BackendBasic      = "basic"
	BackendNone       = "none"
	BackendExtractive = "extractive"
	BackendOpenAI     = "openai"
)

// DefaultSafetySettings defines the default content safety thresholds for
// GenAI models. Moderation is done by the pipeline itself, so the model must
// describe violent or explicit frames instead of refusing them.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// BigQueryDataSource represents the configuration for the run report export.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`   // The name of the BigQuery dataset.
	RunTable    string `toml:"run_table"` // The table holding one row per pipeline run.
}

// PromptTemplates holds the Go templates of the Gemini prompts.
type PromptTemplates struct {
	DetectionPrompt     string `toml:"detection"`
	TranscriptionPrompt string `toml:"transcription"`
	SummaryPrompt       string `toml:"summary"`
}

// VertexAiLLMModel represents the configuration for a Vertex AI large language model (LLM).
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output format for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Storage represents the configuration for storage buckets.
type Storage struct {
	InputBucket  string `toml:"input_bucket"`  // Bucket watched for new uploads.
	OutputBucket string `toml:"output_bucket"` // Bucket receiving the run artifacts.
	OutputPrefix string `toml:"output_prefix"` // Object prefix of the run artifacts, e.g. "runs/".
}

// Backends selects the collaborator implementation of each model-backed stage.
type Backends struct {
	Detector    string `toml:"detector"`    // "gemini" or "basic".
	Transcriber string `toml:"transcriber"` // "gemini" or "none".
	Summarizer  string `toml:"summarizer"`  // "extractive", "gemini" or "openai".
}

// OpenAI configures the OpenAI-compatible summarizer.
type OpenAI struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// Catalog configures the run catalog database.
type Catalog struct {
	Driver string `toml:"driver"` // "sqlite" or "pgx".
	DSN    string `toml:"dsn"`
}

// Server configures the HTTP API.
type Server struct {
	Port        string   `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	MaxUploadMB int64    `toml:"max_upload_mb"`
}

// Telemetry configures logging and exporters.
type Telemetry struct {
	Export   bool   `toml:"export"`    // Export traces and metrics to Google Cloud.
	LogFile  string `toml:"log_file"`  // Optional file receiving a copy of the logs.
	LogLevel string `toml:"log_level"` // debug, info, warn or error.
}

// Moderation configures the moderation lexicon.
type Moderation struct {
	LexiconPath string `toml:"lexicon_path"` // Optional YAML overlay on the embedded lexicon.
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		ThreadPoolSize            int    `toml:"thread_pool_size"`             // Concurrent pipeline runs accepted by the server.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
		WorkDir                   string `toml:"work_dir"`                     // Root directory of the run output directories.
	} `toml:"application"`
	Pipeline           model.PipelineConfig         `toml:"pipeline"`
	Media              media.Options                `toml:"media"`
	Backends           Backends                     `toml:"backends"`
	Storage            Storage                      `toml:"storage"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by a logical name, e.g. "UploadTopic".
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`        // Keyed by ModelDetection, ModelTranscription or ModelSummary.
	OpenAI             OpenAI                       `toml:"openai"`
	Catalog            Catalog                      `toml:"catalog"`
	Server             Server                       `toml:"server"`
	Telemetry          Telemetry                    `toml:"telemetry"`
	Moderation         Moderation                   `toml:"moderation"`
}

// NewConfig creates a Config holding the pipeline defaults and initialized
// maps, so the TOML decoder can populate them.
func NewConfig() *Config {
	c := &Config{
		Pipeline:           model.DefaultPipelineConfig(),
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
		Backends: Backends{
			Detector:    BackendBasic,
			Transcriber: BackendNone,
			Summarizer:  BackendExtractive,
		},
		Catalog: Catalog{Driver: "sqlite", DSN: "file:videoinsight.db?_pragma=busy_timeout(5000)"},
		Server:  Server{Port: "8080", MaxUploadMB: 2048},
	}
	c.Application.Name = "video-insight"
	c.Application.ThreadPoolSize = 2
	c.Application.WorkDir = "outputs"
	c.Telemetry.LogLevel = "info"
	return c
}
