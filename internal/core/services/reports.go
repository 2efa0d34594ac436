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

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// ErrRunNotExported is returned when BigQuery holds no row for a run id.
var ErrRunNotExported = errors.New("run not found in BigQuery")

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// RunRecord is the flattened BigQuery row of a finished run. The full report
// is kept as a JSON string so the table schema does not follow every model
// change.
type RunRecord struct {
	ID                string    `bigquery:"id" json:"id"`
	VideoPath         string    `bigquery:"video_path" json:"video_path"`
	State             string    `bigquery:"state" json:"state"`
	Success           bool      `bigquery:"success" json:"success"`
	Error             string    `bigquery:"error" json:"error,omitempty"`
	Duration          float64   `bigquery:"duration" json:"duration"`
	Resolution        string    `bigquery:"resolution" json:"resolution"`
	SceneCount        int       `bigquery:"scene_count" json:"scene_count"`
	KeyframeCount     int       `bigquery:"keyframe_count" json:"keyframe_count"`
	Language          string    `bigquery:"language" json:"language"`
	Summary           string    `bigquery:"summary" json:"summary"`
	ModerationScore   int       `bigquery:"moderation_score" json:"moderation_score"`
	ModerationRating  string    `bigquery:"moderation_rating" json:"moderation_rating"`
	QualityScore      int       `bigquery:"quality_score" json:"quality_score"`
	ProcessingSeconds float64   `bigquery:"processing_seconds" json:"processing_seconds"`
	ArtifactPrefix    string    `bigquery:"artifact_prefix" json:"artifact_prefix"`
	ReportJSON        string    `bigquery:"report_json" json:"-"`
	CreatedAt         time.Time `bigquery:"created_at" json:"created_at"`
}

// NewRunRecord flattens run. artifactPrefix is the gs:// prefix the artifacts
// were uploaded under, or empty.
func NewRunRecord(run *model.PipelineRun, artifactPrefix string) (RunRecord, error) {
	report, err := json.Marshal(run)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to marshal run %s: %w", run.ID, err)
	}
	record := RunRecord{
		ID:                run.ID,
		VideoPath:         run.VideoPath,
		State:             string(run.State),
		Success:           run.Success,
		Error:             run.Error,
		Duration:          run.VideoInfo.Duration,
		Resolution:        run.VideoInfo.Resolution(),
		SceneCount:        len(run.Scenes),
		KeyframeCount:     len(run.Keyframes),
		Language:          run.Transcript.DetectedLanguage,
		Summary:           run.Summary.Summary,
		ProcessingSeconds: run.ProcessingTime,
		ArtifactPrefix:    artifactPrefix,
		ReportJSON:        string(report),
		CreatedAt:         run.FinishedAt,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if run.Moderation != nil {
		record.ModerationScore = run.Moderation.SeverityScore
		record.ModerationRating = run.Moderation.Rating
	}
	if run.Quality != nil {
		record.QualityScore = run.Quality.Score
	}
	return record, nil
}

// Run decodes the embedded report.
func (r RunRecord) Run() (*model.PipelineRun, error) {
	run := &model.PipelineRun{}
	if err := json.Unmarshal([]byte(r.ReportJSON), run); err != nil {
		return nil, fmt.Errorf("failed to decode report of run %s: %w", r.ID, err)
	}
	return run, nil
}

// RunReportService exports finished runs to BigQuery and hands out signed
// URLs for the artifacts uploaded to Cloud Storage.
type RunReportService struct {
	BigqueryClient *bigquery.Client
	StorageClient  *storage.Client
	IAMClient      *credentials.IamCredentialsClient
	SignerEmail    string
	DatasetName    string
	RunTable       string
	Logger         *slog.Logger
}

func (s *RunReportService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// GetFQN returns the run table name in the dotted form standard SQL expects,
// e.g. `my-project.video_insight.runs`.
func (s *RunReportService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.RunTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// Persist inserts one record with the streaming inserter.
func (s *RunReportService) Persist(ctx context.Context, record RunRecord) error {
	inserter := s.BigqueryClient.Dataset(s.DatasetName).Table(s.RunTable).Inserter()
	if err := inserter.Put(ctx, record); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", record.ID, err)
	}
	s.logger().InfoContext(ctx, "run exported to BigQuery", "run_id", record.ID, "table", s.GetFQN())
	return nil
}

// Get loads the record of one run.
func (s *RunReportService) Get(ctx context.Context, id string) (*RunRecord, error) {
	records, err := s.query(ctx, fmt.Sprintf(QryFindRunById, s.GetFQN()), []bigquery.QueryParameter{
		{Name: "id", Value: id},
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotExported, id)
	}
	return &records[0], nil
}

// List returns up to limit records, newest first.
func (s *RunReportService) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.query(ctx, fmt.Sprintf(QryListRuns, s.GetFQN()), []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	})
}

// ListByRating returns up to limit records with the given moderation rating.
func (s *RunReportService) ListByRating(ctx context.Context, rating string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.query(ctx, fmt.Sprintf(QryRunsByRating, s.GetFQN()), []bigquery.QueryParameter{
		{Name: "rating", Value: rating},
		{Name: "limit", Value: limit},
	})
}

func (s *RunReportService) query(ctx context.Context, sql string, params []bigquery.QueryParameter) ([]RunRecord, error) {
	q := s.BigqueryClient.Query(sql)
	q.Parameters = params
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	records := make([]RunRecord, 0)
	for {
		var record RunRecord
		err := itr.Next(&record)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("failed to read row: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// GenerateSignedURL creates a time-limited V4 GET URL for a private object so
// a browser can fetch an artifact without credentials of its own. The URL is
// signed through the IAM Credentials API as SignerEmail, so no key file is
// needed on GCP runtimes.
//
// Inputs:
//   - ctx: The context for the SignBlob call.
//   - uri: A gs:// or https://storage.(mtls.)cloud.google.com/ object URI.
//   - expires: How long the URL stays valid.
//
// Outputs:
//   - string: The signed URL.
//   - error: An error if the URI is malformed or signing fails.
func (s *RunReportService) GenerateSignedURL(ctx context.Context, uri string, expires time.Duration) (string, error) {
	bucketName, objectName, err := splitObjectURI(uri)
	if err != nil {
		return "", err
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}
	if s.IAMClient != nil && s.SignerEmail != "" {
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}

	u, err := s.StorageClient.Bucket(bucketName).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", bucketName, objectName, err)
	}
	s.logger().DebugContext(ctx, "signed url generated", "bucket", bucketName, "object", objectName, "expires", expires)
	return u, nil
}

var objectURIPrefixes = []string{
	"gs://",
	"https://storage.mtls.cloud.google.com/",
	"https://storage.cloud.google.com/",
	"https://storage.googleapis.com/",
}

func splitObjectURI(uri string) (string, string, error) {
	for _, prefix := range objectURIPrefixes {
		if !strings.HasPrefix(uri, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(uri, prefix), "/", 2)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", uri)
		}
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("invalid GCS URI format: %s", uri)
}
