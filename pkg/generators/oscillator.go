// Package generators provides concrete, cloneable engine.Generator
// implementations: a waveform oscillator bank and a PCM sampler. Grounded
// on pkg/audio/oscillator.go (oisee/abytetracker) and
// src/audio/synth_factory.py (the freepitch prototype these were
// distilled from).
package generators

import (
	"math"

	"github.com/anthropics/polyphon/pkg/engine"
)

// Waveform selects the oscillator's shape.
type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Sawtooth
	Square
)

// NoteState is the engine.VoiceState carried by oscillator notes: pitch
// (Hz), linear volume (0..1), and a stable note id for retrigger matching.
type NoteState struct {
	ID        int
	Frequency float64
	Volume    float64
}

// NoteID implements engine.VoiceState.
func (s NoteState) NoteID() int { return s.ID }

// Oscillator is a stateless-in-time-except-phase generator: a pure
// function of its sample counter and current NoteState, advancing phase
// by exactly n samples per Process call (§4.2 purity contract).
type Oscillator struct {
	sampleRate float64
	wave       Waveform
	state      NoteState
	n          int // sample counter since last Reset
}

// NewOscillator builds an oscillator prototype for the given sample rate
// and waveform; clone it per voice via Clone.
func NewOscillator(sampleRate int, wave Waveform) *Oscillator {
	return &Oscillator{sampleRate: float64(sampleRate), wave: wave}
}

// SetState implements engine.Generator.
func (o *Oscillator) SetState(state engine.VoiceState) {
	o.state = state.(NoteState)
}

// Reset implements engine.Generator: returns the sample counter to 0.
func (o *Oscillator) Reset() {
	o.n = 0
}

// Clone implements engine.Generator; the clone carries no state, only
// configuration, so two voices never alias.
func (o *Oscillator) Clone() engine.Generator {
	return NewOscillator(int(o.sampleRate), o.wave)
}

// Process implements engine.Generator, producing n stereo frames and
// advancing the sample counter by exactly n.
func (o *Oscillator) Process(n int) engine.AudioBuffer {
	out := make(engine.AudioBuffer, n)
	if o.state.Frequency <= 0 {
		o.n += n
		return out
	}
	for i := 0; i < n; i++ {
		t := float64(o.n+i) / o.sampleRate
		phase := math.Mod(o.state.Frequency*t, 1.0)
		value := o.shape(phase) * o.state.Volume
		out[i] = engine.StereoFrame{Left: value, Right: value}
	}
	o.n += n
	return out
}

func (o *Oscillator) shape(phase float64) float64 {
	switch o.wave {
	case Triangle:
		if phase < 0.5 {
			return 4.0*phase - 1.0
		}
		return 3.0 - 4.0*phase
	case Sawtooth:
		return 2.0*phase - 1.0
	case Square:
		if phase < 0.5 {
			return 1.0
		}
		return -1.0
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
