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

// Package catalog keeps a queryable record of every pipeline run. Rows hold
// the headline numbers of a run plus its full JSON report, so a run can be
// listed cheaply and restored exactly.
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite, the default for
// single-node use) and "pgx" (PostgreSQL through pgx's database/sql adapter).
// The schema is embedded and applied on Open.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DefaultListLimit caps List when the filter has no limit.
const DefaultListLimit = 50

// ErrNotFound is returned for an unknown run id.
var ErrNotFound = errors.New("run not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Summary is the catalog row without the report.
type Summary struct {
	ID                string    `db:"id" json:"id"`
	VideoPath         string    `db:"video_path" json:"video_path"`
	OutputDir         string    `db:"output_dir" json:"output_dir"`
	State             string    `db:"state" json:"state"`
	Success           bool      `db:"success" json:"success"`
	Error             string    `db:"error" json:"error,omitempty"`
	SceneCount        int       `db:"scene_count" json:"scene_count"`
	KeyframeCount     int       `db:"keyframe_count" json:"keyframe_count"`
	ModerationRating  string    `db:"moderation_rating" json:"moderation_rating,omitempty"`
	QualityScore      int       `db:"quality_score" json:"quality_score"`
	ProcessingSeconds float64   `db:"processing_seconds" json:"processing_seconds"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

type row struct {
	Summary
	Report string `db:"report"`
}

// Filter narrows List.
type Filter struct {
	State  model.RunState
	Limit  int
	Offset int
}

// Store is the run catalog.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to the catalog database and applies the schema.
//
// Inputs:
//   - ctx: Bounds the connection check and the migrations.
//   - driver: DriverSQLite or DriverPostgres.
//   - dsn: The driver data source name, e.g. "file:catalog.db" or a
//     postgres:// URL.
//   - logger: Optional.
//
// Outputs:
//   - *Store: The open catalog; call Close when done.
//   - error: Unknown driver, connection or migration failure.
func Open(ctx context.Context, driver string, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure catalog: %w", err)
		}
	}

	s := &Store{db: db, logger: logger.With("component", "catalog")}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY)`); err != nil {
		return err
	}
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		var applied int
		err := s.db.GetContext(ctx, &applied, s.db.Rebind(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`), name)
		if err != nil {
			return err
		}
		if applied > 0 {
			continue
		}
		content, err := migrationsFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO schema_migrations (name) VALUES (?)`), name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		s.logger.Info("applied migration", "name", name)
	}
	return nil
}

const upsertRun = `
INSERT INTO runs (id, video_path, output_dir, state, success, error, scene_count, keyframe_count,
                  moderation_rating, quality_score, processing_seconds, report, created_at)
VALUES (:id, :video_path, :output_dir, :state, :success, :error, :scene_count, :keyframe_count,
        :moderation_rating, :quality_score, :processing_seconds, :report, :created_at)
ON CONFLICT (id) DO UPDATE SET
    state = excluded.state,
    success = excluded.success,
    error = excluded.error,
    scene_count = excluded.scene_count,
    keyframe_count = excluded.keyframe_count,
    moderation_rating = excluded.moderation_rating,
    quality_score = excluded.quality_score,
    processing_seconds = excluded.processing_seconds,
    report = excluded.report`

// Save inserts the run, or replaces the stored copy of a run with the same id.
func (s *Store) Save(ctx context.Context, run *model.PipelineRun) error {
	report, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}
	r := row{Summary: summaryOf(run), Report: string(report)}
	if _, err := s.db.NamedExecContext(ctx, upsertRun, r); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

func summaryOf(run *model.PipelineRun) Summary {
	out := Summary{
		ID:                run.ID,
		VideoPath:         run.VideoPath,
		OutputDir:         run.OutputDir,
		State:             string(run.State),
		Success:           run.Success,
		Error:             run.Error,
		SceneCount:        len(run.Scenes),
		KeyframeCount:     len(run.Keyframes),
		ProcessingSeconds: run.ProcessingTime,
		CreatedAt:         run.StartedAt.UTC(),
	}
	if run.Moderation != nil {
		out.ModerationRating = run.Moderation.Rating
	}
	if run.Quality != nil {
		out.QualityScore = run.Quality.Score
	}
	return out
}

// Get restores the stored run.
func (s *Store) Get(ctx context.Context, id string) (*model.PipelineRun, error) {
	var report string
	err := s.db.GetContext(ctx, &report, s.db.Rebind(`SELECT report FROM runs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	var run model.PipelineRun
	if err := json.Unmarshal([]byte(report), &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &run, nil
}

// List returns the newest runs first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Summary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT id, video_path, output_dir, state, success, error, scene_count, keyframe_count,
       moderation_rating, quality_score, processing_seconds, created_at FROM runs`
	args := []any{}
	if filter.State != "" {
		query += ` WHERE state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	out := []Summary{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return out, nil
}

// Delete removes a run from the catalog. Its artifacts are left alone.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM runs WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
