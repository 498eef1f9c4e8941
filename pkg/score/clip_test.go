package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropics/polyphon/pkg/engine"
)

type noteState struct{ id int }

func (s noteState) NoteID() int { return s.id }

type fakeTarget struct {
	starts    []float64
	durations []float64
}

func (f *fakeTarget) AddNote(start, duration float64, state engine.VoiceState) {
	f.starts = append(f.starts, start)
	f.durations = append(f.durations, duration)
}

func TestClip_InsertAdvancesCursor(t *testing.T) {
	c := NewClip(0)
	c.Insert(0.25, noteState{1}).Insert(0.5, noteState{2})

	require.Len(t, c.Notes, 2)
	assert.Equal(t, 0.0, c.Notes[0].Start)
	assert.Equal(t, 0.25, c.Notes[1].Start)
	assert.Equal(t, 0.75, c.EndTime())
}

func TestClip_InsertAtDoesNotMoveCursor(t *testing.T) {
	c := NewClip(0)
	c.InsertAt(2.0, 0.5, noteState{1})
	c.Insert(0.25, noteState{2}) // cursor is still 0

	assert.Equal(t, 0.0, c.Notes[1].Start)
	assert.Equal(t, 2.5, c.Duration, "duration tracks the furthest note end, not the cursor")
}

func TestClip_RestLeavesAGap(t *testing.T) {
	c := NewClip(0)
	c.Rest(1.0).Insert(0.5, noteState{1})

	require.Len(t, c.Notes, 1)
	assert.Equal(t, 1.0, c.Notes[0].Start)
}

func TestClip_AddSubclipAtOffsetsNotes(t *testing.T) {
	sub := NewClip(0)
	sub.Insert(0.25, noteState{1}).Insert(0.25, noteState{2})

	parent := NewClip(0)
	parent.AddSubclipAt(sub, 1.0)

	require.Len(t, parent.Notes, 2)
	assert.Equal(t, 1.0, parent.Notes[0].Start)
	assert.Equal(t, 1.25, parent.Notes[1].Start)
}

func TestClip_AddSubclipNextAdvancesCursor(t *testing.T) {
	sub := NewClip(0)
	sub.Insert(0.5, noteState{1})

	parent := NewClip(0)
	parent.AddSubclipNext(sub)
	parent.Insert(0.25, noteState{2})

	require.Len(t, parent.Notes, 2)
	assert.Equal(t, 0.5, parent.Notes[1].Start, "cursor must land after the spliced subclip's own end")
}

func TestClip_SeekRepositionsCursor(t *testing.T) {
	c := NewClip(0)
	c.Insert(1.0, noteState{1})
	c.Seek(0).Insert(0.5, noteState{2})

	assert.Equal(t, 0.0, c.Notes[1].Start)
}

func TestClip_ScheduleOnOffsetsByClipStartTime(t *testing.T) {
	c := NewClip(2.0)
	c.Insert(0.5, noteState{1}).Insert(0.5, noteState{2})

	target := &fakeTarget{}
	c.ScheduleOn(target)

	require.Len(t, target.starts, 2)
	assert.Equal(t, 2.0, target.starts[0])
	assert.Equal(t, 2.5, target.starts[1])
}
