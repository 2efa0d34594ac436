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

// Package main contains the setup and initialization logic for the application's state.
// This file creates the centralized state manager that holds the shared
// dependencies: configuration, Google Cloud service clients, the run
// catalog, the analysis workflow and the HTTP API server.
//
// Functions:
//   - SetupOS: Points the configuration loader at the configs directory.
//   - GetConfig: Loads the application's configuration once.
//   - InitState: Creates the clients, services and workflows, and starts the
//     Pub/Sub listeners.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-video-insight/internal/api"
	"github.com/jaycherian/gcp-go-video-insight/internal/catalog"
	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/services"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/workflow"
	"github.com/jaycherian/gcp-go-video-insight/internal/media"
)

// StateManager holds all the shared dependencies for the application.
type StateManager struct {
	config   *cloud.Config
	cloud    *cloud.ServiceClients
	catalog  *catalog.Store
	analysis *workflow.VideoAnalysisWorkflow
	reports  *services.RunReportService
	server   *api.Server
}

// state is a package-level variable that holds the single instance of StateManager.
var state = &StateManager{}

// SetupOS sets the environment variables the configuration loader uses to
// find the TOML files. An already set runtime is kept.
func SetupOS() error {
	if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
		return err
	}
	if os.Getenv(cloud.EnvConfigRuntime) != "" {
		return nil
	}
	return os.Setenv(cloud.EnvConfigRuntime, "local")
}

// GetConfig loads the configuration on the first call and returns the cached
// one afterwards.
func GetConfig() (*cloud.Config, error) {
	if state.config != nil {
		return state.config, nil
	}
	if err := SetupOS(); err != nil {
		return nil, fmt.Errorf("failed to setup os: %w", err)
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	state.config = config
	return config, nil
}

// InitState initializes the entire application state.
//
// Inputs:
//   - ctx: The root context; it bounds the listeners and the background runs.
//
// Outputs:
//   - error: The first dependency that could not be created.
//
// This function performs the following steps:
//  1. Initializes the Google Cloud service clients.
//  2. Opens the run catalog.
//  3. Builds the analysis workflow on the configured backends.
//  4. Creates the API server.
//  5. Attaches the ingestion workflow to the upload listener and starts it.
func InitState(ctx context.Context) error {
	config, err := GetConfig()
	if err != nil {
		return err
	}

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	state.catalog, err = catalog.Open(ctx, config.Catalog.Driver, config.Catalog.DSN, slog.Default())
	if err != nil {
		return err
	}

	executor, err := media.New(slog.Default(), config.Media)
	if err != nil {
		return err
	}
	collaborators, err := workflow.NewCollaborators(config, cloudClients, executor, slog.Default())
	if err != nil {
		return err
	}
	state.analysis, err = workflow.NewVideoAnalysisWorkflow(collaborators, slog.Default())
	if err != nil {
		return err
	}

	state.reports = &services.RunReportService{
		BigqueryClient: cloudClients.BiqQueryClient,
		StorageClient:  cloudClients.StorageClient,
		IAMClient:      cloudClients.IAMClient,
		SignerEmail:    config.Application.SignerServiceAccountEmail,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		RunTable:       config.BigQueryDataSource.RunTable,
	}

	state.server, err = api.NewServer(ctx, api.Options{
		Analyzer:    state.analysis,
		Catalog:     state.catalog,
		Signer:      state.reports,
		WorkDir:     config.Application.WorkDir,
		Pipeline:    config.Pipeline,
		Storage:     config.Storage,
		MaxRuns:     config.Application.ThreadPoolSize,
		MaxUploadMB: config.Server.MaxUploadMB,
		CORSOrigins: config.Server.CORSOrigins,
		ServiceName: config.Application.Name,
	}, slog.Default())
	if err != nil {
		return err
	}

	return SetupListeners(ctx, config, cloudClients)
}

// Close releases the catalog and the cloud clients.
func (s *StateManager) Close() {
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil {
			slog.Warn("failed to close catalog", "error", err)
		}
	}
	if s.cloud != nil {
		s.cloud.Close()
	}
}
