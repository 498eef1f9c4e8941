package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s, err := NewScheduler(cfg)
	require.NoError(t, err)
	return s
}

func TestNewScheduler_RejectsBadConfig(t *testing.T) {
	_, err := NewScheduler(Config{SampleRate: 0, Polyphony: 1, Generator: &constGenerator{}})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewScheduler(Config{SampleRate: 48000, Polyphony: 0, Generator: &constGenerator{}})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewScheduler(Config{SampleRate: 48000, Polyphony: 1, Generator: nil})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewScheduler(Config{SampleRate: 48000, Polyphony: 1, Generator: &constGenerator{}, TickWidth: 3, BlockSize: 10})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewScheduler_AttackFromCurrentLevelWithoutEnvelopeDegradesToCutTails(t *testing.T) {
	s := newTestScheduler(t, Config{
		SampleRate:    48000,
		Polyphony:     1,
		Generator:     &constGenerator{},
		RetriggerMode: AttackFromCurrentLevel,
	})
	assert.Equal(t, CutTails, s.cfg.RetriggerMode)
}

func TestQuantize_FloorOnAndCeilOff(t *testing.T) {
	s := newTestScheduler(t, Config{SampleRate: 48000, Polyphony: 1, Generator: &constGenerator{}, TickWidth: 4, BlockSize: 512})
	onIdx := s.quantize(3.5/48000, NoteOn)
	offIdx := s.quantize((3.5+4)/48000, NoteOff)
	assert.Equal(t, 0, onIdx)
	assert.Equal(t, 8, offIdx)
}

func TestQuantize_TickWidthOne(t *testing.T) {
	s := newTestScheduler(t, Config{SampleRate: 48000, Polyphony: 1, Generator: &constGenerator{}, TickWidth: 1, BlockSize: 512})
	assert.Equal(t, 24000, s.quantize(0.5, NoteOn))
	assert.Equal(t, 24000, s.quantize(0.5, NoteOff))
}

func TestEventBin_SimplifyKeepsFirstOffThenFirstOn(t *testing.T) {
	bin := newEventBin()
	off1 := Event{Kind: NoteOff, State: constState{id: 1}}
	off2 := Event{Kind: NoteOff, State: constState{id: 1}}
	on1 := Event{Kind: NoteOn, State: constState{id: 1}}
	on2 := Event{Kind: NoteOn, State: constState{id: 1}}
	bin.addEvent(off1)
	bin.addEvent(off2)
	bin.addEvent(on1)
	bin.addEvent(on2)

	simplified := bin.Simplify()
	events := simplified.EventsFor(1)
	require.Len(t, events, 2)
	assert.Equal(t, NoteOff, events[0].Kind)
	assert.Equal(t, NoteOn, events[1].Kind)

	// idempotent
	again := simplified.Simplify()
	assert.Equal(t, events, again.EventsFor(1))
}

func TestScheduler_SingleNoteNoEnvelope(t *testing.T) {
	sampleRate := 48000
	s := newTestScheduler(t, Config{
		SampleRate: sampleRate,
		Polyphony:  2,
		Generator:  &constGenerator{},
		TickWidth:  1,
		BlockSize:  512,
	})
	s.AddEvent(0, NoteOn, constState{id: 1, level: 0.5})
	s.AddEvent(0.5, NoteOff, constState{id: 1, level: 0.5})

	buf := s.RenderCollect(DefaultRenderOptions())
	require.GreaterOrEqual(t, len(buf), 24000)

	for i := 0; i < 24000; i++ {
		assert.Equal(t, 0.5, buf[i].Left, "frame %d", i)
		assert.Equal(t, 0.5, buf[i].Right, "frame %d", i)
	}
	assert.Equal(t, 0.0, buf[24000].Left)
	assert.Equal(t, 0.0, buf[24000].Right)

	assert.LessOrEqual(t, len(buf)-24000, int(4.0*float64(sampleRate))+512)
}

func TestScheduler_BlockLengthInvariant(t *testing.T) {
	s := newTestScheduler(t, Config{SampleRate: 48000, Polyphony: 1, Generator: &constGenerator{}, TickWidth: 1, BlockSize: 512})
	s.AddEvent(0, NoteOn, constState{id: 1, level: 0.1})
	s.AddEvent(0.01, NoteOff, constState{id: 1, level: 0.1})

	for block := range s.Render(DefaultRenderOptions()) {
		assert.Equal(t, 512, len(block))
	}
}

func TestScheduler_OnsetAlignment_MidBlock(t *testing.T) {
	s := newTestScheduler(t, Config{SampleRate: 48000, Polyphony: 1, Generator: &constGenerator{}, TickWidth: 1, BlockSize: 512})
	onsetIdx := 100
	s.AddEvent(float64(onsetIdx)/48000, NoteOn, constState{id: 1, level: 0.9})
	s.AddEvent(float64(onsetIdx+50)/48000, NoteOff, constState{id: 1, level: 0.9})

	buf := s.RenderCollect(DefaultRenderOptions())
	for i := 0; i < onsetIdx; i++ {
		assert.Equal(t, 0.0, buf[i].Left, "frame %d should be silent before onset", i)
	}
	assert.Equal(t, 0.9, buf[onsetIdx].Left, "first non-zero frame must land exactly at the quantized onset")
}

func TestScheduler_RenderWithNoEvents_YieldsNothing(t *testing.T) {
	s := newTestScheduler(t, Config{SampleRate: 48000, Polyphony: 1, Generator: &constGenerator{}, TickWidth: 1, BlockSize: 512})
	count := 0
	for range s.Render(DefaultRenderOptions()) {
		count++
	}
	assert.Equal(t, 0, count)
}

func TestScheduler_RenderWithoutNoteOff_YieldsNothing(t *testing.T) {
	s := newTestScheduler(t, Config{SampleRate: 48000, Polyphony: 1, Generator: &constGenerator{}, TickWidth: 1, BlockSize: 512})
	s.AddEvent(0, NoteOn, constState{id: 1, level: 0.5})
	count := 0
	for range s.Render(DefaultRenderOptions()) {
		count++
	}
	assert.Equal(t, 0, count)
}

func TestScheduler_PoolBound(t *testing.T) {
	polyphony := 2
	s := newTestScheduler(t, Config{SampleRate: 48000, Polyphony: polyphony, Generator: &constGenerator{}, TickWidth: 1, BlockSize: 64})
	for i := 0; i < 5; i++ {
		start := float64(i) * 0.0001
		s.AddEvent(start, NoteOn, constState{id: i + 1, level: 0.2})
		s.AddEvent(start+1.0, NoteOff, constState{id: i + 1, level: 0.2})
	}

	maxRunning := 0
	for range s.Render(DefaultRenderOptions()) {
		running := 0
		for _, v := range s.voices {
			if v.IsRunning() {
				running++
			}
		}
		if running > maxRunning {
			maxRunning = running
		}
	}
	assert.LessOrEqual(t, maxRunning, polyphony)
}

func TestScheduler_SameTickRetrigger_CutTails(t *testing.T) {
	s := newTestScheduler(t, Config{
		SampleRate:    48000,
		Polyphony:     2,
		Generator:     &constGenerator{},
		Envelope:      NewExpADSR(48000, 0.01, 0.05, 0.5, 0.1, 5.0),
		TickWidth:     1,
		BlockSize:     512,
		RetriggerMode: CutTails,
	})
	s.AddEvent(0, NoteOn, constState{id: 7, level: 0.5})
	s.AddEvent(0, NoteOn, constState{id: 7, level: 0.5}) // same tick, discarded by simplification
	s.AddEvent(1.0, NoteOff, constState{id: 7, level: 0.5})

	running := 0
	for _, v := range s.voices {
		if v.IsRunning() {
			running++
		}
	}
	assert.Equal(t, 0, running, "no voice is running before render starts")

	_ = s.RenderCollect(DefaultRenderOptions())
}

func TestScheduler_RetriggerMatchesSameVoice_CutTails(t *testing.T) {
	s := newTestScheduler(t, Config{
		SampleRate:    48000,
		Polyphony:     4,
		Generator:     &constGenerator{},
		Envelope:      NewExpADSR(48000, 0.001, 0.001, 0.5, 0.05, 5.0),
		TickWidth:     1,
		BlockSize:     256,
		RetriggerMode: CutTails,
	})
	s.interpretNoteOn(42, constState{id: 42, level: 0.5}, 0)
	firstVoice := s.retriggerVoice(42)
	require.NotNil(t, firstVoice)

	s.interpretNoteOn(42, constState{id: 42, level: 0.5}, 10)
	secondVoice := s.retriggerVoice(42)
	assert.Same(t, firstVoice, secondVoice, "retrigger with matching note id must reuse the same voice slot")
}

func TestScheduler_StealOrdering_ReleaseVoicesFirst(t *testing.T) {
	sampleRate := 48000
	s := newTestScheduler(t, Config{
		SampleRate:    sampleRate,
		Polyphony:     2,
		Generator:     &constGenerator{},
		Envelope:      NewExpADSR(sampleRate, 0.001, 0.001, 0.5, 10.0, 5.0), // long release so both stay in RELEASE
		TickWidth:     1,
		BlockSize:     64,
		RetriggerMode: AllowTails,
	})

	s.AddEvent(0.0, NoteOn, constState{id: 1, level: 0.5})
	s.AddEvent(0.1, NoteOn, constState{id: 2, level: 0.5})
	s.AddEvent(0.4, NoteOff, constState{id: 1, level: 0.5})
	s.AddEvent(0.5, NoteOff, constState{id: 2, level: 0.5})
	s.AddEvent(0.6, NoteOn, constState{id: 3, level: 0.5})

	// Manually drive the same sequence the render loop would, using the
	// scheduler's own interpretation helpers, to assert steal ordering
	// directly without depending on render's termination heuristics.
	v1 := s.voices[0]
	v2 := s.voices[1]
	s.interpretNoteOn(1, constState{id: 1, level: 0.5}, int(0.0*float64(sampleRate)))
	s.interpretNoteOn(2, constState{id: 2, level: 0.5}, int(0.1*float64(sampleRate)))
	require.True(t, v1.IsRunning())
	require.True(t, v2.IsRunning())

	s.interpretNoteOff(1, int(0.4*float64(sampleRate)))
	s.interpretNoteOff(2, int(0.5*float64(sampleRate)))
	require.Equal(t, StageRelease, v1.EnvelopeStage())
	require.Equal(t, StageRelease, v2.EnvelopeStage())

	s.interpretNoteOn(3, constState{id: 3, level: 0.5}, int(0.6*float64(sampleRate)))

	id1, _ := v1.CurrentNoteID()
	assert.Equal(t, 3, id1, "voice with the earliest last_off_index (id 1) must be stolen")
}

func TestScheduler_StrayNoteOffIsIgnored(t *testing.T) {
	s := newTestScheduler(t, Config{SampleRate: 48000, Polyphony: 1, Generator: &constGenerator{}, TickWidth: 1, BlockSize: 64})
	// No voice is running; this must not panic and must leave state untouched.
	s.interpretNoteOff(999, 0)
	assert.False(t, s.voices[0].IsRunning())
}

func TestIsSilent(t *testing.T) {
	quiet := AudioBuffer{{Left: 1e-9, Right: -1e-9}}
	loud := AudioBuffer{{Left: 0.5, Right: 0}}
	amp := math.Pow(10, -60.0/20)
	assert.True(t, isSilent(quiet, amp))
	assert.False(t, isSilent(loud, amp))
}
