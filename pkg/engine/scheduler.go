package engine

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// RetriggerMode governs how a NOTE_ON that shares a note id with an
// already-running voice is handled (§4.5).
type RetriggerMode int

const (
	// AllowTails never retrigger-matches: every NOTE_ON allocates or
	// steals a fresh voice, so overlapping tails are audible.
	AllowTails RetriggerMode = iota
	// CutTails matches the running voice and hard-resets it: envelope and
	// generator both restart from scratch.
	CutTails
	// AttackFromCurrentLevel matches the running voice and soft-resets
	// it: only the envelope re-enters ATTACK, gliding from its current
	// value; generator state is still reassigned but not Reset. Without
	// an envelope this degrades to CutTails (§7).
	AttackFromCurrentLevel
)

// ErrConfig is wrapped by every configuration error raised at construction.
var ErrConfig = errors.New("engine: invalid scheduler configuration")

// Config holds the scheduler's immutable construction parameters (§6).
type Config struct {
	SampleRate    int
	Polyphony     int
	Generator     Generator // prototype; cloned per voice
	Envelope      Envelope  // optional prototype; nil means un-enveloped voices
	TickWidth     int       // default 4
	BlockSize     int       // default 512
	RetriggerMode RetriggerMode
}

func (c *Config) applyDefaults() {
	if c.TickWidth == 0 {
		c.TickWidth = 4
	}
	if c.BlockSize == 0 {
		c.BlockSize = 512
	}
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate must be positive, got %d", ErrConfig, c.SampleRate)
	}
	if c.Polyphony <= 0 {
		return fmt.Errorf("%w: polyphony must be positive, got %d", ErrConfig, c.Polyphony)
	}
	if c.Generator == nil {
		return fmt.Errorf("%w: generator prototype is required", ErrConfig)
	}
	if c.BlockSize%c.TickWidth != 0 {
		return fmt.Errorf("%w: block_size (%d) must be a multiple of tick_width (%d)", ErrConfig, c.BlockSize, c.TickWidth)
	}
	return nil
}

// Scheduler owns a fixed pool of voices and a timeline of quantized
// events, and drives the block-wise render loop (§4.5).
type Scheduler struct {
	cfg       Config
	usingADSR bool
	voices    []*Voice
	bins      map[int]*EventBin
	logger    *logrus.Entry
}

// NewScheduler validates cfg and constructs a scheduler with a freshly
// cloned voice pool. Returns an error wrapping ErrConfig if cfg is invalid.
func NewScheduler(cfg Config) (*Scheduler, error) {
	cfg.applyDefaults()
	if cfg.RetriggerMode == AttackFromCurrentLevel && cfg.Envelope == nil {
		// §7: unsupported pairing degrades to CutTails rather than erroring.
		cfg.RetriggerMode = CutTails
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:       cfg,
		usingADSR: cfg.Envelope != nil,
		bins:      make(map[int]*EventBin),
		logger: logrus.WithFields(logrus.Fields{
			"component":  "scheduler",
			"polyphony":  cfg.Polyphony,
			"sampleRate": cfg.SampleRate,
		}),
	}
	s.voices = make([]*Voice, cfg.Polyphony)
	for i := range s.voices {
		var env Envelope
		if cfg.Envelope != nil {
			env = cfg.Envelope.Clone()
		}
		s.voices[i] = NewVoice(cfg.Generator.Clone(), env)
	}
	return s, nil
}

// quantize returns the quantized sample index for a NOTE_ON (floor) or
// NOTE_OFF (ceil) request at wall-clock time t seconds (§4.4).
func (s *Scheduler) quantize(t float64, kind EventKind) int {
	ratio := t * float64(s.cfg.SampleRate) / float64(s.cfg.TickWidth)
	if kind == NoteOn {
		return int(math.Floor(ratio)) * s.cfg.TickWidth
	}
	return int(math.Ceil(ratio)) * s.cfg.TickWidth
}

// AddEvent quantizes and records a single event at wall-clock time t.
func (s *Scheduler) AddEvent(t float64, kind EventKind, state VoiceState) {
	idx := s.quantize(t, kind)
	bin, ok := s.bins[idx]
	if !ok {
		bin = newEventBin()
		s.bins[idx] = bin
	}
	bin.addEvent(Event{Kind: kind, State: state})
}

// AddNote issues a NOTE_ON at start and a NOTE_OFF at start+duration.
func (s *Scheduler) AddNote(start, duration float64, state VoiceState) {
	s.AddEvent(start, NoteOn, state)
	s.AddEvent(start+duration, NoteOff, state)
}

func (s *Scheduler) freeVoices() []*Voice {
	var free []*Voice
	for _, v := range s.voices {
		if !v.IsRunning() {
			free = append(free, v)
		}
	}
	return free
}

func (s *Scheduler) retriggerVoice(noteID int) *Voice {
	for _, v := range s.voices {
		if id, ok := v.CurrentNoteID(); ok && v.IsRunning() && id == noteID {
			return v
		}
	}
	return nil
}

// selectOrStealVoice implements steps 2 and 3 of the §4.5 priority order
// (a free voice, or the correct steal target); retrigger matching (step 1)
// is handled by the caller.
func (s *Scheduler) selectOrStealVoice() *Voice {
	if free := s.freeVoices(); len(free) > 0 {
		return free[0]
	}
	if !s.usingADSR {
		return s.oldestByLastOn()
	}
	var releasing []*Voice
	for _, v := range s.voices {
		if v.EnvelopeStage() == StageRelease {
			releasing = append(releasing, v)
		}
	}
	if len(releasing) > 0 {
		sort.Slice(releasing, func(i, j int) bool {
			return releasing[i].LastOffIndex() < releasing[j].LastOffIndex()
		})
		return releasing[0]
	}
	return s.oldestByLastOn()
}

func (s *Scheduler) oldestByLastOn() *Voice {
	oldest := s.voices[0]
	for _, v := range s.voices[1:] {
		if v.LastOnIndex() < oldest.LastOnIndex() {
			oldest = v
		}
	}
	return oldest
}

// interpretNoteOn applies the §4.5 voice-selection and retrigger-mode
// policy for a single NOTE_ON event.
func (s *Scheduler) interpretNoteOn(noteID int, state VoiceState, binIndex int) {
	var retrigger *Voice
	if s.cfg.RetriggerMode != AllowTails {
		retrigger = s.retriggerVoice(noteID)
	}
	if retrigger != nil && s.cfg.RetriggerMode == AttackFromCurrentLevel && s.usingADSR {
		retrigger.noteOn(noteID, state, binIndex, softRetrig)
		return
	}
	voice := retrigger
	if voice == nil {
		voice = s.selectOrStealVoice()
	}
	spec := freshNoteOn
	voice.noteOn(noteID, state, binIndex, spec)
}

// interpretNoteOff routes a NOTE_OFF to the running voice bound to its
// note id, if any; a match-less NOTE_OFF is discarded silently (§7, §9).
func (s *Scheduler) interpretNoteOff(noteID int, binIndex int) {
	for _, v := range s.voices {
		if id, ok := v.CurrentNoteID(); ok && v.IsRunning() && id == noteID {
			v.noteOff(binIndex)
			return
		}
	}
	s.logger.WithField("noteID", noteID).Debug("stray NOTE_OFF matched no running voice; discarded")
}

func (s *Scheduler) renderSegment(n int) AudioBuffer {
	out := make(AudioBuffer, n)
	if n <= 0 {
		return out
	}
	for _, v := range s.voices {
		if !v.IsRunning() {
			continue
		}
		frames := v.process(n)
		for i := 0; i < n; i++ {
			out[i].Left += frames[i].Left
			out[i].Right += frames[i].Right
		}
	}
	return out
}

func isSilent(buf AudioBuffer, amplitude float64) bool {
	for _, f := range buf {
		if math.Abs(f.Left) > amplitude || math.Abs(f.Right) > amplitude {
			return false
		}
	}
	return true
}

// RenderOptions configures the termination behavior of Render (§4.5, §6).
type RenderOptions struct {
	SilenceDB              float64 // default -60
	MaxSecondsAfterNoteOff float64 // default 4.0
}

// DefaultRenderOptions returns the documented defaults.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{SilenceDB: -60.0, MaxSecondsAfterNoteOff: 4.0}
}

// Render drains this scheduler's timeline into a lazy sequence of fixed
// size (cfg.BlockSize) blocks, applying the block-wise render loop of
// §4.5: each block is split at event-bin boundaries, sub-segments are
// rendered by summing running voices, and events are interpreted
// atomically between sub-segments.
//
// If the timeline is empty, or contains events but no NOTE_OFF, Render
// logs a warning and yields nothing (§7) — the caller's range loop simply
// never executes.
func (s *Scheduler) Render(opts RenderOptions) iter.Seq[AudioBuffer] {
	return func(yield func(AudioBuffer) bool) {
		silenceAmplitude := math.Pow(10, opts.SilenceDB/20)

		remaining := make(map[int]*EventBin, len(s.bins))
		var order []int
		for idx, bin := range s.bins {
			remaining[idx] = bin.Simplify()
			order = append(order, idx)
		}
		sort.Ints(order)

		if len(order) == 0 {
			s.logger.Warn("render called with no events; yielding an empty block stream")
			return
		}

		lastEventIndex := order[len(order)-1]
		lastNoteOffIndex := -1
		for _, idx := range order {
			bin := remaining[idx]
			for _, noteID := range bin.NoteIDs() {
				for _, ev := range bin.EventsFor(noteID) {
					if ev.Kind == NoteOff && idx > lastNoteOffIndex {
						lastNoteOffIndex = idx
					}
				}
			}
		}
		if lastNoteOffIndex < 0 {
			s.logger.Warn("render saw events but no NOTE_OFF after simplification; track is invalid, yielding an empty block stream")
			return
		}

		maxTailSamples := int(opts.MaxSecondsAfterNoteOff * float64(s.cfg.SampleRate))
		estimatedEnd := max(lastEventIndex, lastNoteOffIndex) + maxTailSamples
		estimatedBlocks := max(1, int(math.Ceil(float64(estimatedEnd)/float64(s.cfg.BlockSize))))
		progress := s.logger.WithField("estimatedBlocks", estimatedBlocks)

		cursor := 0
		pos := 0 // index into order of the next unconsumed bin
		blockNum := 0
		for {
			block := make(AudioBuffer, s.cfg.BlockSize)
			segmentStart := 0

			for pos < len(order) && order[pos] < cursor+s.cfg.BlockSize {
				binIndex := order[pos]
				bin := remaining[binIndex]
				pos++

				offset := binIndex - cursor
				if seg := offset - segmentStart; seg > 0 {
					copy(block[segmentStart:offset], s.renderSegment(seg))
					segmentStart = offset
				}

				for _, noteID := range bin.NoteIDs() {
					for _, ev := range bin.EventsFor(noteID) {
						switch ev.Kind {
						case NoteOff:
							s.interpretNoteOff(noteID, binIndex)
						case NoteOn:
							s.interpretNoteOn(noteID, ev.State, binIndex)
						}
					}
				}
			}

			if remainingLen := s.cfg.BlockSize - segmentStart; remainingLen > 0 {
				copy(block[segmentStart:], s.renderSegment(remainingLen))
			}

			blockNum++
			if blockNum%64 == 0 || blockNum >= estimatedBlocks {
				progress.WithField("block", blockNum).Debug("render progress")
			}

			cursorEnd := cursor + s.cfg.BlockSize
			pastLastEvent := cursorEnd >= lastEventIndex
			remainingBins := pos < len(order)

			shouldStop := false
			if pastLastEvent && cursorEnd >= lastNoteOffIndex+maxTailSamples {
				shouldStop = true
			}
			if pastLastEvent && !remainingBins {
				anyRunning := false
				for _, v := range s.voices {
					if v.IsRunning() {
						anyRunning = true
						break
					}
				}
				if !anyRunning {
					shouldStop = true
				}
				if isSilent(block, silenceAmplitude) {
					shouldStop = true
				}
			}

			if !yield(block) {
				return
			}
			if shouldStop {
				return
			}
			cursor = cursorEnd
		}
	}
}

// RenderCollect drains Render into a single flat AudioBuffer.
func (s *Scheduler) RenderCollect(opts RenderOptions) AudioBuffer {
	var out AudioBuffer
	for block := range s.Render(opts) {
		out = append(out, block...)
	}
	return out
}
