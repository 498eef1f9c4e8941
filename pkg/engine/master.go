package engine

import "github.com/sirupsen/logrus"

// Master sums any number of tracks' rendered output, applying each
// track's gain before addition and zero-padding to the longest track
// (§4.6). No limiter or clipper is applied; the caller handles headroom.
type Master struct {
	tracks []*Track
	logger *logrus.Entry
}

// NewMaster borrows the given tracks for summation; it does not take
// ownership of them.
func NewMaster(tracks ...*Track) *Master {
	return &Master{
		tracks: tracks,
		logger: logrus.WithField("component", "master"),
	}
}

// RenderCollect renders every track and linearly mixes the results.
func (m *Master) RenderCollect() AudioBuffer {
	rendered := make([]AudioBuffer, len(m.tracks))
	length := 0
	for i, t := range m.tracks {
		m.logger.WithField("track", t.Name).Debug("rendering track")
		rendered[i] = t.RenderCollect()
		if len(rendered[i]) > length {
			length = len(rendered[i])
		}
	}

	out := make(AudioBuffer, length)
	for i, t := range m.tracks {
		buf := rendered[i]
		gain := t.Gain
		for j, f := range buf {
			out[j].Left += gain * f.Left
			out[j].Right += gain * f.Right
		}
	}
	return out
}
