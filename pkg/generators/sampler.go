package generators

import "github.com/anthropics/polyphon/pkg/engine"

// SampleNoteState is the engine.VoiceState carried by sampler notes: which
// sample to play, at what volume, under which note id.
type SampleNoteState struct {
	ID     int
	Sample string
	Volume float64
}

// NoteID implements engine.VoiceState.
func (s SampleNoteState) NoteID() int { return s.ID }

// Sampler is a PCM-sample playback generator: it owns a bank of
// pre-decoded stereo buffers (keyed by name) and plays one back from the
// start on each Reset. Grounded on src/audio/sampler_synth.py.
type Sampler struct {
	bank  map[string]engine.AudioBuffer // shared read-only sample data
	state SampleNoteState
	n     int // sample counter since last Reset
}

// NewSampler builds a sampler prototype over a shared, read-only bank of
// decoded samples. The bank itself is never mutated, so sharing it across
// clones does not violate voice isolation (§5); only per-voice playback
// position (n) and state are cloned independently.
func NewSampler(bank map[string]engine.AudioBuffer) *Sampler {
	return &Sampler{bank: bank}
}

// SetState implements engine.Generator.
func (s *Sampler) SetState(state engine.VoiceState) {
	s.state = state.(SampleNoteState)
}

// Reset implements engine.Generator: rewinds playback to the first frame.
func (s *Sampler) Reset() {
	s.n = 0
}

// Clone implements engine.Generator, sharing the underlying sample bank
// (read-only) but giving the clone its own independent playback cursor.
func (s *Sampler) Clone() engine.Generator {
	return NewSampler(s.bank)
}

// Process implements engine.Generator: plays back the selected sample from
// its current cursor, padding with silence once the sample is exhausted.
func (s *Sampler) Process(n int) engine.AudioBuffer {
	out := make(engine.AudioBuffer, n)
	buf := s.bank[s.state.Sample]
	for i := 0; i < n; i++ {
		idx := s.n + i
		if idx < len(buf) {
			out[i] = engine.StereoFrame{
				Left:  buf[idx].Left * s.state.Volume,
				Right: buf[idx].Right * s.state.Volume,
			}
		}
	}
	s.n += n
	return out
}
