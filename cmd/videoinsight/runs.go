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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jaycherian/gcp-go-video-insight/internal/catalog"
	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/report"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/services"
)

// runLine is one row of the runs listing, from the catalog or BigQuery.
type runLine struct {
	ID        string
	State     string
	Video     string
	Scenes    int
	Rating    string
	Error     string
	CreatedAt time.Time
}

func fromSummary(s catalog.Summary) runLine {
	return runLine{ID: s.ID, State: s.State, Video: s.VideoPath, Scenes: s.SceneCount, Rating: s.ModerationRating, Error: s.Error, CreatedAt: s.CreatedAt}
}

func fromRecord(r services.RunRecord) runLine {
	return runLine{ID: r.ID, State: r.State, Video: r.VideoPath, Scenes: r.SceneCount, Rating: r.ModerationRating, Error: r.Error, CreatedAt: r.CreatedAt}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List analysis runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "state", Usage: "Only runs in this state, e.g. Done or Failed"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs", Value: catalog.DefaultListLimit},
			&cli.IntFlag{Name: "offset", Usage: "Runs to skip"},
			&cli.BoolFlag{Name: "bigquery", Usage: "List the BigQuery export instead of the local catalog"},
			&cli.StringFlag{Name: "rating", Usage: "With --bigquery, only runs with this content rating"},
		},
		Action: runsAction,
	}
}

func runsAction(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c, config)

	if c.Bool("bigquery") {
		return listExported(c, config)
	}

	store, err := openCatalog(c, config, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(c.Context, catalog.Filter{
		State:  model.RunState(c.String("state")),
		Limit:  c.Int("limit"),
		Offset: c.Int("offset"),
	})
	if err != nil {
		return err
	}
	lines := make([]runLine, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, fromSummary(s))
	}
	printSummaries(c.App.Writer, lines)
	return nil
}

func listExported(c *cli.Context, config *cloud.Config) error {
	clients, err := cloud.NewCloudServiceClients(c.Context, config)
	if err != nil {
		return err
	}
	defer clients.Close()
	reports := &services.RunReportService{
		BigqueryClient: clients.BiqQueryClient,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		RunTable:       config.BigQueryDataSource.RunTable,
	}

	var records []services.RunRecord
	if rating := c.String("rating"); rating != "" {
		records, err = reports.ListByRating(c.Context, rating, c.Int("limit"))
	} else {
		records, err = reports.List(c.Context, c.Int("limit"))
	}
	if err != nil {
		return err
	}
	lines := make([]runLine, 0, len(records))
	for _, r := range records {
		lines = append(lines, fromRecord(r))
	}
	printSummaries(c.App.Writer, lines)
	return nil
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Print the text summary of a run",
		ArgsUsage: "RUN_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the run from this analysis.json instead of the catalog"},
			&cli.BoolFlag{Name: "json", Usage: "Print the full run as JSON"},
		},
		Action: reportAction,
	}
}

func reportAction(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c, config)

	var run *model.PipelineRun
	if path := c.String("file"); path != "" {
		if run, err = readRunFile(path); err != nil {
			return err
		}
	} else {
		if c.NArg() < 1 {
			return fmt.Errorf("missing required argument: RUN_ID")
		}
		store, err := openCatalog(c, config, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		if run, err = store.Get(c.Context, c.Args().Get(0)); err != nil {
			return err
		}
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	_, err = fmt.Fprint(c.App.Writer, report.SummaryText(run))
	return err
}

func readRunFile(path string) (*model.PipelineRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	run := &model.PipelineRun{}
	if err := json.Unmarshal(data, run); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return run, nil
}
