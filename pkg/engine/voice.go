package engine

// retriggerSpec describes how note_on should (re)arm a voice's envelope and
// generator, matching the three cases in §4.3 and the Scheduler's
// retrigger-mode handling in §4.5.
type retriggerSpec struct {
	resetADSR   bool
	resetGen    bool
	triggerADSR bool
}

var (
	// freshNoteOn is used both for a genuinely new voice allocation/steal
	// and for a CutTails retrigger match: both hard-reset envelope and
	// generator.
	freshNoteOn = retriggerSpec{resetADSR: true, resetGen: true, triggerADSR: true}
	// softRetrig is AttackFromCurrentLevel's soft reset: only the
	// envelope re-enters ATTACK, from its current value.
	softRetrig = retriggerSpec{resetADSR: false, resetGen: false, triggerADSR: true}
)

// Voice binds one Generator to an optional Envelope, enforces the
// synchronous reset/gate rules of §4.3, and produces enveloped stereo
// samples.
type Voice struct {
	generator Generator
	envelope  Envelope // nil when the voice runs un-enveloped

	running       bool
	currentNoteID int
	hasNoteID     bool
	lastOnIndex   int
	lastOffIndex  int
}

// NewVoice constructs an idle voice around the given generator and
// optional envelope, which it uses as given without cloning; the caller
// passes instances owned by this voice alone (NewScheduler clones them
// from its prototypes).
func NewVoice(generator Generator, envelope Envelope) *Voice {
	v := &Voice{generator: generator, envelope: envelope}
	if v.envelope != nil {
		v.envelope.RegisterIdleHandler(func() {
			v.running = false
		})
	}
	return v
}

// IsRunning reports whether the voice is currently sounding.
func (v *Voice) IsRunning() bool { return v.running }

// CurrentNoteID returns the note id this voice is currently bound to, if
// any.
func (v *Voice) CurrentNoteID() (int, bool) { return v.currentNoteID, v.hasNoteID }

// LastOnIndex is the global sample index of this voice's most recent
// note-on.
func (v *Voice) LastOnIndex() int { return v.lastOnIndex }

// LastOffIndex is the global sample index of this voice's most recent
// note-off.
func (v *Voice) LastOffIndex() int { return v.lastOffIndex }

// EnvelopeStage reports the envelope stage, or StageIdle if the voice has
// no envelope.
func (v *Voice) EnvelopeStage() Stage {
	if v.envelope == nil {
		return StageIdle
	}
	return v.envelope.Stage()
}

// HasEnvelope reports whether this voice carries an envelope.
func (v *Voice) HasEnvelope() bool { return v.envelope != nil }

// noteOn arms the voice per spec, using the given retrigger behavior.
func (v *Voice) noteOn(noteID int, state VoiceState, sampleIndex int, spec retriggerSpec) {
	if v.envelope != nil && spec.resetADSR {
		v.envelope.Reset()
	}
	v.generator.SetState(state)
	if spec.resetGen {
		v.generator.Reset()
	}
	if v.envelope != nil && spec.triggerADSR {
		v.envelope.NoteOn()
	}
	v.running = true
	v.currentNoteID = noteID
	v.hasNoteID = true
	v.lastOnIndex = sampleIndex
}

// noteOff releases the voice at the given global sample index.
func (v *Voice) noteOff(sampleIndex int) {
	if v.envelope != nil {
		v.envelope.NoteOff()
	} else {
		v.running = false
	}
	v.lastOffIndex = sampleIndex
}

// process renders n frames, applying the envelope (or unity gain when none
// is present) pointwise to the generator's output.
func (v *Voice) process(n int) AudioBuffer {
	frames := v.generator.Process(n)
	out := make(AudioBuffer, n)
	if v.envelope == nil {
		copy(out, frames)
		return out
	}
	env := v.envelope.Generate(n)
	for i := 0; i < n; i++ {
		out[i] = StereoFrame{
			Left:  env[i] * frames[i].Left,
			Right: env[i] * frames[i].Right,
		}
	}
	return out
}
