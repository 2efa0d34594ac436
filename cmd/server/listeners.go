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

// Package main contains the logic for setting up and starting the Pub/Sub
// message listeners that start an analysis when a video lands in the input
// bucket.
package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/workflow"
)

// UploadTopic is the topic_subscriptions key of the GCS upload notifications.
const UploadTopic = "UploadTopic"

// SetupListeners attaches the ingestion workflow to the upload listener and
// starts it. Without an upload subscription the service only serves the API.
func SetupListeners(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients) error {
	listener, ok := cloudClients.PubSubListeners[UploadTopic]
	if !ok {
		slog.Warn("no upload subscription configured; GCS trigger disabled", "key", UploadTopic)
		return nil
	}

	ingestion := workflow.NewVideoIngestionWorkflow(workflow.IngestionOptions{
		StorageClient: cloudClients.StorageClient,
		Analyzer:      state.analysis,
		Store:         state.catalog,
		Exporter:      state.reports,
		WorkDir:       config.Application.WorkDir,
		OutputBucket:  config.Storage.OutputBucket,
		OutputPrefix:  config.Storage.OutputPrefix,
		Config:        config.Pipeline,
		Sink:          state.server.Hub(),
	}, slog.Default())

	listener.SetCommand(ingestion)
	listener.Listen(ctx)
	return nil
}
