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

package media

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

// Speech format expected by the transcription backends.
const (
	SpeechSampleRate = 16000
	SpeechChannels   = 1
	SpeechCodec      = "pcm_s16le"
	minAudioBytes    = 1000
)

// ExtractAudio writes the first audio track of input to output as mono 16kHz
// PCM WAV.
//
// Outputs:
//   - model.AudioOutcome: The WAV path, or the reason there is none. A
//     missing audio track and an ffmpeg failure are both reported here.
func (e *Executor) ExtractAudio(ctx context.Context, input string, output string) model.AudioOutcome {
	e.logger.Info("extracting audio", "input", input, "output", output)

	log, err := e.Run(ctx, RunOptions{
		Args: []string{
			"-i", input,
			"-vn",
			"-acodec", SpeechCodec,
			"-ar", fmt.Sprint(SpeechSampleRate),
			"-ac", fmt.Sprint(SpeechChannels),
			output,
		},
	})
	if err != nil {
		_ = os.Remove(output)
		if strings.Contains(log, "does not contain any stream") || strings.Contains(log, "matches no streams") {
			return model.AudioUnavailable(ErrNoAudioStream.Error())
		}
		return model.AudioUnavailable(fmt.Sprintf("audio extraction failed: %v", err))
	}

	st, err := os.Stat(output)
	if err != nil {
		return model.AudioUnavailable(fmt.Sprintf("audio output missing: %v", err))
	}
	if st.Size() <= minAudioBytes {
		_ = os.Remove(output)
		return model.AudioUnavailable(ErrNoAudioStream.Error())
	}
	return model.AudioExtracted(output)
}
