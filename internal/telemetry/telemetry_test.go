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

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-video-insight/internal/cloud"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLoggerUsesCloudLoggingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Warn("disk almost full", "free_mb", 12)
	entry := decodeLine(t, &buf)
	assert.Equal(t, "WARNING", entry["severity"])
	assert.Equal(t, "disk almost full", entry["message"])
	assert.Contains(t, entry, "timestamp")
	assert.EqualValues(t, 12, entry["free_mb"])

	buf.Reset()
	logger.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestLoggerAddsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelDebug).With("component", "test")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "stage finished")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["logging.googleapis.com/trace"])
	assert.Equal(t, "00f067aa0ba902b7", entry["logging.googleapis.com/spanId"])
	assert.Equal(t, true, entry["logging.googleapis.com/trace_sampled"])
	assert.Equal(t, "test", entry["component"])

	buf.Reset()
	logger.Info("no span")
	assert.NotContains(t, decodeLine(t, &buf), "logging.googleapis.com/trace")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetupLoggingWritesLogFile(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	path := filepath.Join(t.TempDir(), "app.log")
	closeLogs, err := SetupLogging(cloud.Telemetry{LogFile: path, LogLevel: "debug"})
	require.NoError(t, err)
	slog.Debug("written to file")
	closeLogs()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")

	_, err = SetupLogging(cloud.Telemetry{LogFile: filepath.Join(t.TempDir(), "missing", "app.log")})
	assert.Error(t, err)
}

func TestSetupOpenTelemetryDisabled(t *testing.T) {
	config := cloud.NewConfig()
	config.Telemetry.Export = false
	shutdown, err := SetupOpenTelemetry(context.Background(), config)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "unknown", statusClass(0))
	assert.Equal(t, "unknown", statusClass(700))
}

func TestCollectors(t *testing.T) {
	before := testutil.ToFloat64(stageOutcomes.WithLabelValues("scenes", "degraded"))
	RecordStage("scenes", "degraded", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(stageOutcomes.WithLabelValues("scenes", "degraded")))

	failures := testutil.ToFloat64(keyframeFailures)
	RecordKeyframeFailures(0)
	RecordKeyframeFailures(3)
	assert.Equal(t, failures+3, testutil.ToFloat64(keyframeFailures))

	inFlight := testutil.ToFloat64(runsInFlight)
	RunStarted()
	assert.Equal(t, inFlight+1, testutil.ToFloat64(runsInFlight))
	failed := testutil.ToFloat64(runsTotal.WithLabelValues("failure"))
	RunFinished(false, time.Second)
	assert.Equal(t, inFlight, testutil.ToFloat64(runsInFlight))
	assert.Equal(t, failed+1, testutil.ToFloat64(runsTotal.WithLabelValues("failure")))

	requests := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/healthz", "2xx"))
	RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
	assert.Equal(t, requests+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/healthz", "2xx")))
}
