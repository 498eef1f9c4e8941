package generators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropics/polyphon/pkg/engine"
)

func TestOscillator_Additivity(t *testing.T) {
	osc := NewOscillator(48000, Sine)
	osc.SetState(NoteState{ID: 1, Frequency: 440, Volume: 1.0})

	whole := osc.Process(100)

	osc2 := NewOscillator(48000, Sine)
	osc2.SetState(NoteState{ID: 1, Frequency: 440, Volume: 1.0})
	a := osc2.Process(40)
	b := osc2.Process(60)
	split := append(engine.AudioBuffer{}, a...)
	split = append(split, b...)

	require.Equal(t, len(whole), len(split))
	for i := range whole {
		assert.InDelta(t, whole[i].Left, split[i].Left, 1e-9, "sample %d", i)
	}
}

func TestOscillator_ResetRestartsCounter(t *testing.T) {
	osc := NewOscillator(48000, Square)
	osc.SetState(NoteState{ID: 1, Frequency: 100, Volume: 1.0})
	first := osc.Process(5)
	osc.Reset()
	second := osc.Process(5)
	assert.Equal(t, first, second)
}

func TestOscillator_CloneIsIndependent(t *testing.T) {
	osc := NewOscillator(48000, Triangle)
	osc.SetState(NoteState{ID: 1, Frequency: 220, Volume: 1.0})
	osc.Process(1000)

	clone := osc.Clone().(*Oscillator)
	out := clone.Process(1)
	assert.Equal(t, 0.0, out[0].Left, "a freshly cloned oscillator starts silent until SetState is called")
}

func TestOscillator_SilentWhenFrequencyIsZero(t *testing.T) {
	osc := NewOscillator(48000, Sine)
	osc.SetState(NoteState{ID: 1, Frequency: 0, Volume: 1.0})
	out := osc.Process(10)
	for _, f := range out {
		assert.Equal(t, 0.0, f.Left)
		assert.Equal(t, 0.0, f.Right)
	}
}

func TestWaveforms_StayInRange(t *testing.T) {
	for _, wave := range []Waveform{Sine, Triangle, Sawtooth, Square} {
		osc := NewOscillator(48000, wave)
		osc.SetState(NoteState{ID: 1, Frequency: 440, Volume: 1.0})
		out := osc.Process(4800)
		for _, f := range out {
			assert.GreaterOrEqual(t, f.Left, -1.0001)
			assert.LessOrEqual(t, f.Left, 1.0001)
		}
	}
}
