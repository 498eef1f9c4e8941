package audio

import (
	"encoding/binary"
	"io"

	"github.com/ebitengine/oto/v3"

	"github.com/anthropics/polyphon/pkg/engine"
)

// RealtimePlayer streams a pre-rendered stereo AudioBuffer to the default
// audio device. The engine itself never streams; it only produces a
// buffer, which is what makes this strictly an external collaborator
// (§1 Non-goals: no real-time streaming from the scheduler itself).
// Adapted from the teacher's pkg/audio/realtime.go, which drove a live
// tracker Player instead of a fixed, already-rendered buffer.
type RealtimePlayer struct {
	ctx    *oto.Context
	player *oto.Player
}

// NewRealtimePlayer opens the default audio device and prepares buf for
// playback at sampleRate.
func NewRealtimePlayer(buf engine.AudioBuffer, sampleRate int) (*RealtimePlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	rp := &RealtimePlayer{ctx: ctx}
	rp.player = ctx.NewPlayer(&bufferStream{buf: buf})
	return rp, nil
}

// Play starts playback; it does not block.
func (rp *RealtimePlayer) Play() {
	rp.player.Play()
}

// IsPlaying reports whether audio is still playing.
func (rp *RealtimePlayer) IsPlaying() bool {
	return rp.player.IsPlaying()
}

// Close releases the audio device.
func (rp *RealtimePlayer) Close() error {
	return rp.player.Close()
}

// bufferStream adapts an engine.AudioBuffer to io.Reader, converting to
// interleaved 16-bit PCM as oto consumes it.
type bufferStream struct {
	buf engine.AudioBuffer
	pos int // frame index into buf
}

func (s *bufferStream) Read(p []byte) (int, error) {
	n := 0
	for n+4 <= len(p) && s.pos < len(s.buf) {
		frame := s.buf[s.pos]
		s.pos++
		binary.LittleEndian.PutUint16(p[n:], uint16(int16(clamp(frame.Left)*fullScale16)))
		binary.LittleEndian.PutUint16(p[n+2:], uint16(int16(clamp(frame.Right)*fullScale16)))
		n += 4
	}
	if n == 0 && s.pos >= len(s.buf) {
		return 0, io.EOF
	}
	return n, nil
}
