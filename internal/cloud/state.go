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

// Package cloud provides components for interacting with Google Cloud services.
// This file initializes and holds the client objects used to communicate with
// Google Cloud. ServiceClients acts as a dependency injection container that
// is created once at startup and shared by the workflows and API handlers.
//
// Logic Flow:
//  1. NewCloudServiceClients is called at application startup with the loaded Config.
//  2. It initializes clients for Storage, Pub/Sub, BigQuery, IAM credentials and,
//     when agent models are configured, GenAI.
//  3. It creates a Pub/Sub listener per configured subscription and a
//     rate-limited model per configured agent model.
//  4. The bundle is handed to the workflows and services.
package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients is a central container for the clients that talk to Google
// Cloud services.
type ServiceClients struct {
	StorageClient   *storage.Client                   // Client for Google Cloud Storage (GCS).
	PubsubClient    *pubsub.Client                    // Client for Google Cloud Pub/Sub.
	GenAIClient     *genai.Client                     // Client for Vertex AI generative models; nil without agent models.
	BiqQueryClient  *bigquery.Client                  // Client for Google Cloud BigQuery.
	IAMClient       *credentials.IamCredentialsClient // Client for IAM, used to sign GCS URLs.
	PubSubListeners map[string]*PubSubListener        // Active Pub/Sub listeners, keyed by a logical name from the config.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel
}

// Close shuts down every client that was opened.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BiqQueryClient != nil {
		_ = c.BiqQueryClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// AgentModel returns the configured model for a logical name.
func (c *ServiceClients) AgentModel(name string) (*QuotaAwareGenerativeAIModel, bool) {
	if c == nil {
		return nil, false
	}
	m, ok := c.AgentModels[name]
	return m, ok
}

// NewCloudServiceClients initializes all required Google Cloud service clients
// based on the provided configuration.
//
// Inputs:
//   - ctx: The root context.Context for the application.
//   - config: A pointer to the loaded application configuration.
//
// Outputs:
//   - *ServiceClients: The initialized clients.
//   - error: The first client that failed to initialize. Clients opened
//     before the failure are closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (out *ServiceClients, err error) {
	out = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			out.Close()
			out = nil
		}
	}()

	project := config.Application.GoogleProjectId
	if out.StorageClient, err = storage.NewClient(ctx); err != nil {
		return out, fmt.Errorf("storage client: %w", err)
	}
	if out.PubsubClient, err = pubsub.NewClient(ctx, project); err != nil {
		return out, fmt.Errorf("pubsub client: %w", err)
	}
	if out.BiqQueryClient, err = bigquery.NewClient(ctx, project); err != nil {
		return out, fmt.Errorf("bigquery client: %w", err)
	}
	if out.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
		return out, fmt.Errorf("iam credentials client: %w", err)
	}

	// The command is attached later, when the workflows are built.
	for key, values := range config.TopicSubscriptions {
		listener, err := NewPubSubListener(out.PubsubClient, values.Name, nil)
		if err != nil {
			return out, err
		}
		out.PubSubListeners[key] = listener
	}

	if len(config.AgentModels) > 0 {
		slog.Info("creating genai client", "project", project, "location", config.Application.GoogleLocation)
		out.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			Project:  project,
			Location: config.Application.GoogleLocation,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return out, fmt.Errorf("genai client: %w", err)
		}
		for key, values := range config.AgentModels {
			out.AgentModels[key] = NewQuotaAwareModel(NewGenerationConfig(values), values.Model, out.GenAIClient.Models, values.RateLimit)
			slog.Debug("configured agent model", "key", key, "model", values.Model)
		}
	}
	return out, nil
}
