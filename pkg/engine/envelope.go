package engine

import "math"

// Stage is the envelope's current position in the ADSR state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StageAttack:
		return "ATTACK"
	case StageDecay:
		return "DECAY"
	case StageSustain:
		return "SUSTAIN"
	case StageRelease:
		return "RELEASE"
	default:
		return "IDLE"
	}
}

// Envelope is the per-voice amplitude state machine contract (§6). Every
// voice that wants gain shaping clones an Envelope prototype.
type Envelope interface {
	Clone() Envelope
	Reset()
	NoteOn()
	NoteOff()
	Stage() Stage
	Generate(n int) []float64
	RegisterIdleHandler(fn func())
}

// ExpADSR is an exponential-segment ADSR envelope: each non-sustain stage
// approaches its target from the value captured at stage entry, over a
// fixed number of samples, so retriggers and releases always glide instead
// of jumping. Grounded on src/audio/exp_adsr.py in the distilled prototype.
type ExpADSR struct {
	sampleRate int
	attackS    float64
	decayS     float64
	sustain    float64
	releaseS   float64
	numTau     float64

	stage Stage
	value float64

	i      int     // sample index within the current segment
	n      int     // segment length in samples
	start  float64 // value captured at segment entry
	target float64
	tau    float64

	idleHandlers []func()
}

// NewExpADSR builds an envelope with the given stage durations in seconds
// and a 0..1 sustain level. numTau controls how many time constants each
// segment spans before it is considered complete (typical value 5).
func NewExpADSR(sampleRate int, attackS, decayS, sustain, releaseS float64, numTau float64) *ExpADSR {
	if numTau <= 0 {
		numTau = 5.0
	}
	return &ExpADSR{
		sampleRate: sampleRate,
		attackS:    attackS,
		decayS:     decayS,
		sustain:    sustain,
		releaseS:   releaseS,
		numTau:     numTau,
		stage:      StageIdle,
		tau:        1.0,
	}
}

// Clone returns an independent envelope with the same configuration and
// idle handlers cleared — each voice registers its own.
func (e *ExpADSR) Clone() Envelope {
	return NewExpADSR(e.sampleRate, e.attackS, e.decayS, e.sustain, e.releaseS, e.numTau)
}

// Reset returns the envelope to IDLE at zero value.
func (e *ExpADSR) Reset() {
	e.stage = StageIdle
	e.value = 0
	e.i = 0
	e.n = 0
	e.start = 0
	e.target = 0
	e.tau = 1.0
}

// NoteOn unconditionally enters ATTACK from the current value, so a
// re-attack glides rather than clicks.
func (e *ExpADSR) NoteOn() {
	e.enterSegment(StageAttack, 1.0, e.attackS)
}

// NoteOff enters RELEASE from the current value, unless already IDLE.
func (e *ExpADSR) NoteOff() {
	if e.stage != StageIdle {
		e.enterSegment(StageRelease, 0.0, e.releaseS)
	}
}

// Stage reports the current ADSR stage.
func (e *ExpADSR) Stage() Stage { return e.stage }

// RegisterIdleHandler adds a callback fired exactly once each time the
// envelope transitions from RELEASE into IDLE.
func (e *ExpADSR) RegisterIdleHandler(fn func()) {
	e.idleHandlers = append(e.idleHandlers, fn)
}

// Generate produces n non-negative envelope samples, advancing internal
// state by exactly n samples.
func (e *ExpADSR) Generate(n int) []float64 {
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		switch e.stage {
		case StageIdle:
			e.value = 0

		case StageSustain:
			// Holds whatever value was reached; never snaps to sustain level.

		default:
			e.step()
			if e.i >= e.n {
				switch e.stage {
				case StageAttack:
					e.enterSegment(StageDecay, e.sustain, e.decayS)
				case StageDecay:
					e.stage = StageSustain
				case StageRelease:
					e.stage = StageIdle
					for _, h := range e.idleHandlers {
						h()
					}
				}
			}
		}
		out[k] = e.value
	}
	return out
}

func (e *ExpADSR) secsToSamples(s float64) int {
	return int(s * float64(e.sampleRate))
}

func (e *ExpADSR) enterSegment(stage Stage, target, seconds float64) {
	e.stage = stage
	e.i = 0
	e.n = e.secsToSamples(seconds)
	e.start = e.value
	e.target = target
	if e.n > 0 {
		e.tau = float64(e.n) / e.numTau
	} else {
		e.tau = 1.0
	}
}

func (e *ExpADSR) step() {
	if e.n <= 0 {
		// Zero-length segment: elapsed instantly, value untouched.
		e.i = 1
		return
	}
	e.value = e.target + (e.start-e.target)*math.Exp(-float64(e.i)/e.tau)
	e.i++
}
