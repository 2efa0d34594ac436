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

// Package media wraps the ffmpeg and ffprobe binaries. Every operation the
// pipeline needs from the video source lives here: probing, scene boundary
// detection, single-frame decoding, audio extraction and clip assembly.
//
// Callers never see process exit codes. Operations either return a typed
// outcome (model.AudioOutcome, model.ClipOutcome) or a wrapped error that can
// be matched with errors.Is against the sentinels below.
package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrFFmpegNotFound is returned by New when a binary is missing.
	ErrFFmpegNotFound = errors.New("ffmpeg not found")
	// ErrNoVideoStream means the probed file has no decodable video.
	ErrNoVideoStream = errors.New("no video stream")
	// ErrNoAudioStream means the source has no audio track.
	ErrNoAudioStream = errors.New("no audio stream")
	// ErrNoFrame means a decode produced no image, usually a seek past the end.
	ErrNoFrame = errors.New("no frame decoded")
)

// Options configure an Executor.
type Options struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
	Threads     int    `toml:"threads"`
	// UseGPU asks ffmpeg for hardware decoding. It is a hint only.
	UseGPU bool `toml:"use_gpu"`
}

// Executor runs ffmpeg and ffprobe.
type Executor struct {
	logger      *slog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
	useGPU      bool
}

// New resolves the binaries and returns an Executor.
//
// Inputs:
//   - logger: Parent logger; a "component" attribute is added.
//   - opts: Binary locations and tuning. Empty paths are looked up on PATH.
//
// Outputs:
//   - *Executor: The executor.
//   - error: Wraps ErrFFmpegNotFound when a binary cannot be resolved.
func New(logger *slog.Logger, opts Options) (*Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ffmpegPath, err := lookPath(opts.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobePath, err := lookPath(opts.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}
	return &Executor{
		logger:      logger.With("component", "ffmpeg"),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
		useGPU:      opts.UseGPU,
	}, nil
}

func lookPath(configured string, name string) (string, error) {
	if configured == "" {
		configured = name
	}
	path, err := exec.LookPath(configured)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFFmpegNotFound, configured, err)
	}
	return path, nil
}

// RunOptions describe one ffmpeg invocation.
type RunOptions struct {
	// InputArgs go before the first -i, for seeking and decoder hints.
	InputArgs []string
	Args      []string
	// Stdout receives the raw standard output when set; otherwise stdout is
	// scanned line by line into LogHandler.
	Stdout     io.Writer
	LogHandler func(line string)
}

// Run executes ffmpeg and returns the collected stderr.
func (e *Executor) Run(ctx context.Context, opts RunOptions) (string, error) {
	if len(opts.Args) == 0 {
		return "", errors.New("no arguments provided")
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "info"}
	if e.threads > 0 {
		args = append(args, "-threads", strconv.Itoa(e.threads))
	}
	if e.useGPU {
		args = append(args, "-hwaccel", "auto")
	}
	args = append(args, opts.InputArgs...)
	args = append(args, opts.Args...)

	e.logger.Debug("executing ffmpeg", "args", args)

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	var stdout io.ReadCloser
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	} else if stdout, err = cmd.StdoutPipe(); err != nil {
		return "", fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		buf bytes.Buffer
	)
	collect := func(line string) {
		mu.Lock()
		buf.WriteString(line)
		buf.WriteByte('\n')
		mu.Unlock()
		if opts.LogHandler != nil {
			opts.LogHandler(line)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		scan(stderr, collect)
	}()
	if stdout != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scan(stdout, opts.LogHandler)
		}()
	}
	wg.Wait()

	err = cmd.Wait()
	mu.Lock()
	output := buf.String()
	mu.Unlock()
	if err != nil {
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		return output, fmt.Errorf("ffmpeg execution failed: %w: %s", err, lastLines(output, 3))
	}
	return output, nil
}

func scan(r io.Reader, handler func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if handler != nil {
			handler(scanner.Text())
		}
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// isNullOutputError reports the benign failures ffmpeg emits when the
// output is the null muxer.
func isNullOutputError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Conversion failed") ||
		strings.Contains(msg, "Invalid return value") ||
		strings.Contains(msg, "Output file is empty")
}
