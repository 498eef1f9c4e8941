package engine

// Track wraps a Scheduler with a linear output gain (§4.6).
type Track struct {
	Name      string
	Gain      float64
	Scheduler *Scheduler
}

// NewTrack builds a Track around a freshly constructed Scheduler.
func NewTrack(name string, gain float64, cfg Config) (*Track, error) {
	sched, err := NewScheduler(cfg)
	if err != nil {
		return nil, err
	}
	return &Track{Name: name, Gain: gain, Scheduler: sched}, nil
}

// AddNote issues a NOTE_ON at start and a NOTE_OFF at start+duration on
// this track's scheduler.
func (t *Track) AddNote(start, duration float64, state VoiceState) {
	t.Scheduler.AddNote(start, duration, state)
}

// RenderCollect drains the track's scheduler into a flat AudioBuffer,
// using the default render options.
func (t *Track) RenderCollect() AudioBuffer {
	return t.Scheduler.RenderCollect(DefaultRenderOptions())
}
