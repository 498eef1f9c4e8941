// Command polyphon drives the engine package from the command line:
// render a scored demo to WAV, play it back in real time, or just print
// the built-in demo's tracks and their gains. Adapted from the teacher's
// cmd/tracker/main.go, which wired flag + bubbletea directly into a
// single tracker player; here cobra fans the same ideas out into
// subcommands around the new engine/score packages.
package main

import (
	"fmt"
	"math"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	polyaudio "github.com/anthropics/polyphon/pkg/audio"
	"github.com/anthropics/polyphon/pkg/engine"
	"github.com/anthropics/polyphon/pkg/generators"
	"github.com/anthropics/polyphon/pkg/score"
	"github.com/anthropics/polyphon/pkg/tui"
)

var (
	sampleRate int
	polyphony  int
	outPath    string
	showTUI    bool
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:   "polyphon",
		Short: "Offline polyphonic voice-scheduling engine demo CLI",
	}
	root.PersistentFlags().IntVar(&sampleRate, "sample-rate", 48000, "audio sample rate in Hz")
	root.PersistentFlags().IntVar(&polyphony, "polyphony", 8, "voice pool size")

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "render the built-in demo score to a WAV file",
		RunE:  runRender,
	}
	renderCmd.Flags().StringVar(&outPath, "out", "demo.wav", "output WAV path")
	renderCmd.Flags().BoolVar(&showTUI, "tui", false, "show a live progress monitor while rendering")

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "render the built-in demo score and play it back",
		RunE:  runPlay,
	}

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "print a summary of the built-in demo score",
		RunE:  runDemo,
	}

	root.AddCommand(renderCmd, playCmd, demoCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	_, tracks, err := buildDemoMaster()
	if err != nil {
		return err
	}
	for _, t := range tracks {
		fmt.Printf("track %q: gain=%.2f\n", t.Name, t.Gain)
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	master, tracks, err := buildDemoMaster()
	if err != nil {
		return err
	}

	var buf engine.AudioBuffer
	if showTUI && len(tracks) > 0 {
		buf, err = renderWithTUI(tracks[0])
		if err != nil {
			return err
		}
		buf = mixInto(nil, buf, tracks[0].Gain)
		for _, t := range tracks[1:] {
			buf = mixInto(buf, t.RenderCollect(), t.Gain)
		}
	} else {
		buf = master.RenderCollect()
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()

	if err := polyaudio.WriteWAV(f, buf, sampleRate); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	fmt.Printf("wrote %d frames to %s\n", len(buf), outPath)
	return nil
}

// renderWithTUI drives a single track's Render loop by hand so each block
// can be turned into a tui.Progress snapshot, fed to a bubbletea program
// over a channel. Other tracks are rendered silently and mixed in after.
func renderWithTUI(t *engine.Track) (engine.AudioBuffer, error) {
	updates := make(chan tui.Progress)
	model := tui.NewModel(t.Name, sampleRate, updates)
	program := tea.NewProgram(model)

	done := make(chan error, 1)
	go func() {
		_, err := program.Run()
		done <- err
	}()

	var buf engine.AudioBuffer
	blocks, frames := 0, 0
	for block := range t.Scheduler.Render(engine.DefaultRenderOptions()) {
		buf = append(buf, block...)
		blocks++
		frames += len(block)
		updates <- tui.Progress{
			BlocksRendered: blocks,
			FramesRendered: frames,
			PeakLevel:      peakOf(block),
		}
	}
	close(updates)
	return buf, <-done
}

func peakOf(block engine.AudioBuffer) float64 {
	peak := 0.0
	for _, f := range block {
		if v := math.Abs(f.Left); v > peak {
			peak = v
		}
		if v := math.Abs(f.Right); v > peak {
			peak = v
		}
	}
	return peak
}

func mixInto(dst, src engine.AudioBuffer, gain float64) engine.AudioBuffer {
	if len(src) > len(dst) {
		grown := make(engine.AudioBuffer, len(src))
		copy(grown, dst)
		dst = grown
	}
	for i, f := range src {
		dst[i].Left += gain * f.Left
		dst[i].Right += gain * f.Right
	}
	return dst
}

func runPlay(cmd *cobra.Command, args []string) error {
	master, _, err := buildDemoMaster()
	if err != nil {
		return err
	}
	buf := master.RenderCollect()

	player, err := polyaudio.NewRealtimePlayer(buf, sampleRate)
	if err != nil {
		return fmt.Errorf("opening audio device: %w", err)
	}
	defer player.Close()

	player.Play()
	for player.IsPlaying() {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

func buildDemoMaster() (*engine.Master, []*engine.Track, error) {
	lead, err := newOscillatorTrack("lead", 0.6, generators.Sine, 0.01, 0.08, 0.7, 0.3)
	if err != nil {
		return nil, nil, err
	}
	bass, err := newOscillatorTrack("bass", 0.5, generators.Triangle, 0.02, 0.1, 0.8, 0.4)
	if err != nil {
		return nil, nil, err
	}

	melody := score.NewClip(0)
	melody.Insert(0.25, generators.NoteState{ID: 1, Frequency: 261.63, Volume: 0.8})
	melody.Insert(0.25, generators.NoteState{ID: 2, Frequency: 329.63, Volume: 0.8})
	melody.Insert(0.25, generators.NoteState{ID: 3, Frequency: 392.00, Volume: 0.8})
	melody.Insert(0.5, generators.NoteState{ID: 4, Frequency: 523.25, Volume: 0.8})
	melody.ScheduleOn(lead.Scheduler)

	bassline := score.NewClip(0)
	bassline.Insert(0.5, generators.NoteState{ID: 101, Frequency: 130.81, Volume: 0.7})
	bassline.Insert(0.5, generators.NoteState{ID: 102, Frequency: 146.83, Volume: 0.7})
	bassline.ScheduleOn(bass.Scheduler)

	master := engine.NewMaster(lead, bass)
	return master, []*engine.Track{lead, bass}, nil
}

func newOscillatorTrack(name string, gain float64, wave generators.Waveform, attack, decay, sustain, release float64) (*engine.Track, error) {
	osc := generators.NewOscillator(sampleRate, wave)
	env := engine.NewExpADSR(sampleRate, attack, decay, sustain, release, 5.0)
	cfg := engine.Config{
		SampleRate:    sampleRate,
		Polyphony:     polyphony,
		Generator:     osc,
		Envelope:      env,
		RetriggerMode: engine.CutTails,
	}
	return engine.NewTrack(name, gain, cfg)
}
