// Package score provides a numeric, parser-free arrangement layer on top
// of pkg/engine: a Clip accumulates (start, duration, state) notes behind
// a running cursor, and can be spliced into other clips. Grounded on
// src/audio/arrangement.py (Clip/Track) in the freepitch prototype this
// was distilled from — textual note-notation parsing itself stays out of
// scope per spec.md.
package score

import "github.com/anthropics/polyphon/pkg/engine"

// ClipNote is one scheduled note within a Clip, at an offset relative to
// the clip's own start.
type ClipNote struct {
	Start    float64
	Duration float64
	State    engine.VoiceState
}

// Clip is an ordered collection of notes with a sequencing cursor, so
// callers can append notes back-to-back (Insert) or at an explicit offset
// (InsertAt) without tracking timing arithmetic themselves.
type Clip struct {
	StartTime float64
	Duration  float64
	Notes     []ClipNote

	cursor float64
}

// NewClip creates an empty clip starting at startTime.
func NewClip(startTime float64) *Clip {
	return &Clip{StartTime: startTime}
}

// Insert appends a note immediately after the clip's current cursor and
// advances the cursor past it.
func (c *Clip) Insert(duration float64, state engine.VoiceState) *Clip {
	c.Notes = append(c.Notes, ClipNote{Start: c.cursor, Duration: duration, State: state})
	c.cursor += duration
	c.syncDuration(c.cursor)
	return c
}

// InsertAt appends a note at an explicit offset from the clip's start,
// without moving the cursor.
func (c *Clip) InsertAt(start, duration float64, state engine.VoiceState) *Clip {
	c.Notes = append(c.Notes, ClipNote{Start: start, Duration: duration, State: state})
	c.syncDuration(start + duration)
	return c
}

// Rest advances the cursor by duration without inserting a note — a gap.
func (c *Clip) Rest(duration float64) *Clip {
	c.cursor += duration
	c.syncDuration(c.cursor)
	return c
}

// AddSubclipAt splices another clip's notes into this one, offsetting
// every note by startTime, without moving this clip's cursor.
func (c *Clip) AddSubclipAt(sub *Clip, startTime float64) *Clip {
	for _, n := range sub.Notes {
		c.Notes = append(c.Notes, ClipNote{
			Start:    startTime + n.Start,
			Duration: n.Duration,
			State:    n.State,
		})
	}
	c.syncDuration(startTime + sub.Duration)
	return c
}

// AddSubclipNext splices another clip's notes starting at this clip's
// current cursor, then advances the cursor past it.
func (c *Clip) AddSubclipNext(sub *Clip) *Clip {
	c.AddSubclipAt(sub, c.cursor)
	c.cursor += sub.Duration
	return c
}

// Seek repositions the cursor, e.g. back to the start for overdubbing.
func (c *Clip) Seek(position float64) *Clip {
	c.cursor = position
	return c
}

func (c *Clip) syncDuration(candidateEnd float64) {
	if candidateEnd > c.Duration {
		c.Duration = candidateEnd
	}
}

// EndTime is StartTime + Duration.
func (c *Clip) EndTime() float64 {
	return c.StartTime + c.Duration
}

// ScheduleOn issues every note in the clip onto the given scheduler-like
// target, offsetting each note's start by the clip's own StartTime.
func (c *Clip) ScheduleOn(target interface {
	AddNote(start, duration float64, state engine.VoiceState)
}) {
	for _, n := range c.Notes {
		target.AddNote(c.StartTime+n.Start, n.Duration, n.State)
	}
}
