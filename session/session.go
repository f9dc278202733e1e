// Package session ties a renderer to the live bus, the capture recorder and
// the replay driver. A session is either recording or replaying, never both.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/rs/xid"
	"github.com/spf13/afero"

	"github.com/sarchlab/gsreplay/capture"
	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/replay"
	"github.com/sarchlab/gsreplay/txlog"
)

// ErrBusy is returned when a capture is requested during a replay, or a
// replay during a capture.
var ErrBusy = errors.New("session is busy")

// Mode tells what a session is doing.
type Mode int

// Modes of a session.
const (
	ModeIdle Mode = iota
	ModeCapturing
	ModeReplaying
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeCapturing:
		return "capturing"
	case ModeReplaying:
		return "replaying"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Options configure a Session.
type Options struct {
	CaptureEnabled bool
	Logger         *log.Logger
}

// A Session owns one renderer.
type Session struct {
	id       string
	fs       afero.Fs
	renderer gs.Renderer
	bus      *capture.Bus
	recorder *capture.Recorder
	logger   *log.Logger

	lock sync.Mutex
	mode Mode
}

// New creates a session around renderer. Files are read from and written to
// fs.
func New(fs afero.Fs, renderer gs.Renderer, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "gsreplay: ", log.LstdFlags)
	}

	bus := capture.NewBus(renderer)
	rec := capture.NewRecorder(fs, bus, opts.Logger)
	rec.SetEnabled(opts.CaptureEnabled)

	return &Session{
		id:       xid.New().String(),
		fs:       fs,
		renderer: renderer,
		bus:      bus,
		recorder: rec,
		logger:   opts.Logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Bus returns the live bus. Hosts issue their GS calls through it.
func (s *Session) Bus() *capture.Bus {
	return s.bus
}

// Renderer returns the renderer owned by the session.
func (s *Session) Renderer() gs.Renderer {
	return s.renderer
}

// Mode returns what the session is doing.
func (s *Session) Mode() Mode {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.mode
}

func (s *Session) enter(m Mode) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.mode != ModeIdle {
		if s.mode == m && m == ModeCapturing {
			return capture.ErrAlreadyRecording
		}

		return fmt.Errorf("%w: %s", ErrBusy, s.mode)
	}

	s.mode = m

	return nil
}

func (s *Session) leave() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.mode = ModeIdle
}

// StartCapture begins recording the live bus into path.
func (s *Session) StartCapture(path string) (capture.Recording, error) {
	if err := s.enter(ModeCapturing); err != nil {
		return capture.Recording{}, err
	}

	rec, err := s.recorder.BeginCapture(path)
	if err != nil {
		s.leave()
		return rec, err
	}

	return rec, nil
}

// StopCapture ends the running capture.
func (s *Session) StopCapture() (capture.Recording, error) {
	if s.Mode() != ModeCapturing {
		return capture.Recording{}, capture.ErrNotRecording
	}

	defer s.leave()

	return s.recorder.EndCapture()
}

// StopCaptureAtExit ends any running capture. It is meant for
// atexit.Register so that an interrupted capture still has a flushed
// container.
func (s *Session) StopCaptureAtExit() {
	if s.Mode() != ModeCapturing {
		return
	}

	if _, err := s.StopCapture(); err != nil {
		s.logger.Printf("capture not closed cleanly: %v", err)
	}
}

// OpenReplay loads path and builds a driver that replays it into the
// session renderer. The session is held in replay mode until RunReplay
// returns or CloseReplay is called.
func (s *Session) OpenReplay(
	path string,
	b replay.Builder,
	opts txlog.LoadOptions,
) (*replay.Driver, error) {
	if err := s.enter(ModeReplaying); err != nil {
		return nil, err
	}

	d := b.WithRenderer(s.renderer).Build()

	if err := d.LoadFile(s.fs, path, opts); err != nil {
		s.leave()
		return nil, err
	}

	return d, nil
}

// CloseReplay releases the session from an opened replay that will not be
// run.
func (s *Session) CloseReplay() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.mode == ModeReplaying {
		s.mode = ModeIdle
	}
}

// RunReplay runs d to completion and releases the session.
func (s *Session) RunReplay(ctx context.Context, d *replay.Driver) (replay.Stats, error) {
	defer s.CloseReplay()

	return d.Run(ctx)
}

// Replay opens path and runs it.
func (s *Session) Replay(
	ctx context.Context,
	path string,
	b replay.Builder,
	opts txlog.LoadOptions,
) (replay.Stats, error) {
	d, err := s.OpenReplay(path, b, opts)
	if err != nil {
		return replay.Stats{}, err
	}

	return s.RunReplay(ctx, d)
}
