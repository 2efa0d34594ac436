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

// Package api serves the HTTP surface of the analysis service: video
// uploads that start a run, the run catalog, run artifacts, websocket
// progress streaming and the Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-video-insight/internal/catalog"
	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insight/internal/telemetry"
)

const (
	uploadField     = "file"
	signedURLExpiry = 15 * time.Minute
	StageQueued     = "queued"
)

// RunCatalog is the part of the catalog the API reads and writes.
type RunCatalog interface {
	Save(ctx context.Context, run *model.PipelineRun) error
	Get(ctx context.Context, id string) (*model.PipelineRun, error)
	List(ctx context.Context, filter catalog.Filter) ([]catalog.Summary, error)
	Delete(ctx context.Context, id string) error
}

// URLSigner hands out time-limited URLs for uploaded artifacts.
type URLSigner interface {
	GenerateSignedURL(ctx context.Context, uri string, expires time.Duration) (string, error)
}

// Options wires the server to the pipeline.
type Options struct {
	Analyzer    commands.Analyzer
	Catalog     RunCatalog
	Hub         *Hub
	Signer      URLSigner // optional
	WorkDir     string
	Pipeline    model.PipelineConfig
	Storage     cloud.Storage
	MaxRuns     int // concurrent analyses; extra uploads wait for a slot
	MaxUploadMB int64
	CORSOrigins []string
	ServiceName string
}

// Server owns the router and the background runs it started.
type Server struct {
	opts   Options
	logger *slog.Logger
	ctx    context.Context
	slots  chan struct{}
	wg     sync.WaitGroup
}

// NewServer creates a server. Background runs are cancelled with ctx.
func NewServer(ctx context.Context, opts Options, logger *slog.Logger) (*Server, error) {
	var errs []error
	if opts.Analyzer == nil {
		errs = append(errs, errors.New("analyzer is required"))
	}
	if opts.Catalog == nil {
		errs = append(errs, errors.New("catalog is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = 1
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "video-insight"
	}
	return &Server{
		opts:   opts,
		logger: logger.With("component", "api"),
		ctx:    ctx,
		slots:  make(chan struct{}, opts.MaxRuns),
	}, nil
}

// Hub returns the progress hub runs report to.
func (s *Server) Hub() *Hub {
	return s.opts.Hub
}

// Wait blocks until every background run has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Router builds the gin engine.
//
// Routes:
//   - GET /healthz
//   - GET /metrics
//   - POST /api/v1/analyze: multipart upload under "file", starts a run.
//   - GET /api/v1/runs: catalog listing, filtered by state, limit and offset.
//   - GET /api/v1/runs/:id
//   - DELETE /api/v1/runs/:id
//   - GET /api/v1/runs/:id/progress: websocket progress stream.
//   - GET /api/v1/runs/:id/artifacts/*name: a file of the run directory.
//   - GET /api/v1/runs/:id/artifact-url?name=: signed URL of an uploaded artifact.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.opts.ServiceName))
	r.Use(requestMetrics())
	r.Use(s.cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/analyze", s.analyze)
		runs := apiV1.Group("/runs")
		{
			runs.GET("", s.listRuns)
			runs.GET("/:id", s.getRun)
			runs.DELETE("/:id", s.deleteRun)
			runs.GET("/:id/progress", s.progress)
			runs.GET("/:id/artifacts/*name", s.artifact)
			runs.GET("/:id/artifact-url", s.artifactURL)
		}
	}
	return r
}

func (s *Server) cors() gin.HandlerFunc {
	if len(s.opts.CORSOrigins) == 0 {
		return cors.Default()
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = s.opts.CORSOrigins
	return cors.New(cfg)
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		telemetry.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) analyze(c *gin.Context) {
	if s.opts.MaxUploadMB > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadMB<<20)
	}
	file, err := c.FormFile(uploadField)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("missing %q upload: %v", uploadField, err)})
		return
	}
	cfg, err := pipelineOverrides(c, s.opts.Pipeline)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := model.NewRunID()
	videoPath := filepath.Join(s.opts.WorkDir, "uploads", id, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, videoPath); err != nil {
		s.logger.ErrorContext(c, "failed to store upload", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}

	run := model.NewPipelineRun(id, videoPath, filepath.Join(s.opts.WorkDir, "runs", id), cfg)
	if err := s.opts.Catalog.Save(c, run); err != nil {
		s.logger.ErrorContext(c, "failed to catalog queued run", "run_id", id, "error", err)
	}
	s.opts.Hub.Report(model.Progress{RunID: id, Stage: StageQueued, Message: "queued", State: run.State, Time: time.Now().UTC()})

	s.start(run)
	c.JSON(http.StatusAccepted, gin.H{"id": id, "state": run.State})
}

// start runs the analysis in the background once a slot is free.
func (s *Server) start(queued *model.PipelineRun) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case s.slots <- struct{}{}:
		case <-s.ctx.Done():
			queued.Finish(fmt.Errorf("run %s not started: %w", queued.ID, s.ctx.Err()))
			s.save(queued)
			return
		}
		defer func() { <-s.slots }()

		run := s.opts.Analyzer.RunWithID(s.ctx, queued.ID, queued.VideoPath, queued.OutputDir, queued.Config, s.opts.Hub)
		s.save(run)
		s.logger.Info("run finished", "run_id", run.ID, "success", run.Success, "state", run.State)
	}()
}

func (s *Server) save(run *model.PipelineRun) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 10*time.Second)
	defer cancel()
	if err := s.opts.Catalog.Save(ctx, run); err != nil {
		s.logger.Error("failed to catalog run", "run_id", run.ID, "error", err)
	}
}

// pipelineOverrides applies the optional form fields of an upload.
func pipelineOverrides(c *gin.Context, base model.PipelineConfig) (model.PipelineConfig, error) {
	cfg := base
	if v := c.PostForm("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return cfg, fmt.Errorf("invalid threshold %q", v)
		}
		cfg.SceneThreshold = f
	}
	if v := c.PostForm("max_scenes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid max_scenes %q", v)
		}
		cfg.MaxScenes = n
	}
	if v := c.PostForm("language"); v != "" {
		cfg.Language = v
	}
	for _, stage := range c.PostFormArray("disable") {
		for _, name := range strings.Split(stage, ",") {
			if err := DisableStage(&cfg, strings.TrimSpace(name)); err != nil {
				return cfg, err
			}
		}
	}
	return cfg.Normalize(), nil
}

// DisableStage turns off an optional stage by name.
func DisableStage(cfg *model.PipelineConfig, name string) error {
	switch name {
	case "":
	case commands.StageDetection:
		cfg.EnableDetection = false
	case commands.StageTranscription:
		cfg.EnableTranscription = false
	case commands.StageSummarization:
		cfg.EnableSummarization = false
	case commands.StageModeration:
		cfg.EnableModeration = false
	case commands.StageQuality:
		cfg.EnableQuality = false
	case commands.StageSummaryVideo:
		cfg.EnableSummaryVideo = false
	default:
		return fmt.Errorf("stage %q cannot be disabled", name)
	}
	return nil
}

func (s *Server) listRuns(c *gin.Context) {
	filter := catalog.Filter{State: model.RunState(c.Query("state"))}
	var err error
	if filter.Limit, err = intQuery(c, "limit", catalog.DefaultListLimit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.Offset, err = intQuery(c, "offset", 0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runs, err := s.opts.Catalog.List(c, filter)
	if err != nil {
		s.logger.ErrorContext(c, "failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list runs"})
		return
	}
	c.JSON(http.StatusOK, runs)
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

// lookup fetches the run named by the :id parameter, answering the request
// itself when there is none.
func (s *Server) lookup(c *gin.Context) (*model.PipelineRun, bool) {
	id := c.Param("id")
	run, err := s.opts.Catalog.Get(c, id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return nil, false
	}
	if err != nil {
		s.logger.ErrorContext(c, "failed to get run", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read run"})
		return nil, false
	}
	return run, true
}

func (s *Server) getRun(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) deleteRun(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	if !run.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "run is still in progress"})
		return
	}
	if err := s.opts.Catalog.Delete(c, run.ID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		s.logger.ErrorContext(c, "failed to delete run", "run_id", run.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete run"})
		return
	}
	if err := os.RemoveAll(run.OutputDir); err != nil {
		s.logger.WarnContext(c, "failed to remove run directory", "run_id", run.ID, "error", err)
	}
	s.opts.Hub.Forget(run.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) artifact(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	local, err := ArtifactPath(run.OutputDir, c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if info, err := os.Stat(local); err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	c.File(local)
}

// ArtifactPath resolves name inside the run directory, rejecting names that
// escape it.
func ArtifactPath(outputDir string, name string) (string, error) {
	clean := path.Clean("/" + strings.TrimPrefix(name, "/"))
	if clean == "/" {
		return "", errors.New("artifact name is required")
	}
	local := filepath.Join(outputDir, filepath.FromSlash(clean))
	rel, err := filepath.Rel(outputDir, local)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return local, nil
}

func (s *Server) artifactURL(c *gin.Context) {
	if s.opts.Signer == nil || s.opts.Storage.OutputBucket == "" {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "artifact uploads are not configured"})
		return
	}
	name := strings.TrimPrefix(path.Clean("/"+c.Query("name")), "/")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	uri := cloud.GCSURI(s.opts.Storage.OutputBucket, path.Join(commands.ArtifactObjectPrefix(s.opts.Storage.OutputPrefix, run.ID), name))
	url, err := s.opts.Signer.GenerateSignedURL(c, uri, signedURLExpiry)
	if err != nil {
		s.logger.ErrorContext(c, "failed to sign artifact url", "run_id", run.ID, "uri", uri, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate artifact URL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(signedURLExpiry.Seconds())})
}
