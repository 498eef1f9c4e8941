// Package audio carries the out-of-scope (per spec.md) I/O collaborators
// the engine needs to be runnable end to end: WAV export and realtime
// playback. The engine itself only produces engine.AudioBuffer; turning
// that into bytes on disk or sound from a speaker is deliberately kept
// separate from the scheduler core. Adapted from the teacher's
// pkg/audio/output.go (hand-rolled WAV header) and realtime.go (oto
// playback), now driving go-audio/wav for correct chunk framing.
package audio

import (
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/anthropics/polyphon/pkg/engine"
)

const fullScale16 = 32767

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}

// WriteWAV encodes buf as a 16-bit stereo PCM WAV file.
func WriteWAV(w io.WriteSeeker, buf engine.AudioBuffer, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)

	data := make([]int, len(buf)*2)
	for i, f := range buf {
		data[i*2] = int(math.Round(clamp(f.Left) * fullScale16))
		data[i*2+1] = int(math.Round(clamp(f.Right) * fullScale16))
	}

	intBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(intBuf); err != nil {
		return err
	}
	return enc.Close()
}
