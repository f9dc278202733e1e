package capture

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/afero"

	"github.com/sarchlab/gsreplay/codec"
	"github.com/sarchlab/gsreplay/container"
	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/hooking"
)

var (
	// ErrAlreadyRecording is returned when a capture is started while one
	// is running. The running capture is not affected.
	ErrAlreadyRecording = errors.New("capture already in progress")

	// ErrCannotOpenOutput is returned when the output file cannot be
	// created or its header cannot be written.
	ErrCannotOpenOutput = errors.New("cannot open capture output")

	// ErrCaptureDisabled is returned when capturing is turned off.
	ErrCaptureDisabled = errors.New("capture is disabled")

	// ErrNotRecording is returned when ending a capture that never started.
	ErrNotRecording = errors.New("no capture in progress")
)

// Recording describes a capture.
type Recording struct {
	ID           string
	Path         string
	Started      time.Time
	Ended        time.Time
	Transactions uint64
	Bytes        int64

	// Err is the first write error. Once set, the capture stopped taking
	// transactions.
	Err error
}

// A Recorder writes the transactions observed on a Bus to a dump file.
type Recorder struct {
	fs      afero.Fs
	bus     *Bus
	logger  *log.Logger
	enabled bool

	lock    sync.Mutex
	current *Recording
	w       *container.Writer
	enc     *codec.Encoder
}

// NewRecorder creates a Recorder and attaches it to bus.
func NewRecorder(fs afero.Fs, bus *Bus, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.New(os.Stderr, "gsreplay: ", log.LstdFlags)
	}

	r := &Recorder{
		fs:      fs,
		bus:     bus,
		logger:  logger,
		enabled: true,
	}

	bus.AcceptHook(r)

	return r
}

// SetEnabled turns capturing on or off. It does not stop a running capture.
func (r *Recorder) SetEnabled(enabled bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.enabled = enabled
}

// IsRecording reports whether a capture is in progress.
func (r *Recorder) IsRecording() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.current != nil
}

// BeginCapture creates path and writes the session header: the current game
// CRC, a freeze of the renderer, and the register bank. Every transaction
// that crosses the bus afterwards is appended until EndCapture.
func (r *Recorder) BeginCapture(path string) (rec Recording, err error) {
	r.bus.exclusive(func() {
		r.lock.Lock()
		defer r.lock.Unlock()

		rec, err = r.begin(path)
	})

	if err != nil {
		r.logger.Printf("capture cancelled: %v", err)
		return rec, err
	}

	r.logger.Printf("capture started: %s", path)

	return rec, nil
}

func (r *Recorder) begin(path string) (Recording, error) {
	if !r.enabled {
		return Recording{}, ErrCaptureDisabled
	}

	if r.current != nil {
		return Recording{}, ErrAlreadyRecording
	}

	state, err := r.bus.renderer.Freeze()
	if err != nil {
		return Recording{}, fmt.Errorf("freeze: %w", err)
	}

	header, err := gs.NewHeader(r.bus.crc, state, r.bus.regs)
	if err != nil {
		return Recording{}, err
	}

	w, err := container.Create(r.fs, path)
	if err != nil {
		return Recording{}, fmt.Errorf("%w: %w", ErrCannotOpenOutput, err)
	}

	if err := codec.WriteHeader(w, header); err != nil {
		w.Close()
		return Recording{}, fmt.Errorf("%w: %w", ErrCannotOpenOutput, err)
	}

	r.w = w
	r.enc = codec.NewEncoder(w)
	r.bus.watchers++
	r.current = &Recording{
		ID:      xid.New().String(),
		Path:    path,
		Started: time.Now(),
	}

	return *r.current, nil
}

// Func appends an observed transaction. A write error ends the capture
// early; it is reported by EndCapture.
func (r *Recorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosTransaction {
		return
	}

	t, ok := ctx.Item.(*gs.Transaction)
	if !ok {
		return
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.current == nil || r.current.Err != nil {
		return
	}

	if err := r.enc.Encode(t); err != nil {
		r.current.Err = err
		r.logger.Printf("capture stopped writing: %v", err)

		return
	}

	r.current.Transactions++
}

// EndCapture flushes and closes the output.
func (r *Recorder) EndCapture() (rec Recording, err error) {
	r.bus.exclusive(func() {
		r.lock.Lock()
		defer r.lock.Unlock()

		rec, err = r.end()
	})

	if errors.Is(err, ErrNotRecording) {
		return rec, err
	}

	r.logger.Printf("capture ended: %s, %d transactions",
		rec.Path, rec.Transactions)

	return rec, err
}

func (r *Recorder) end() (Recording, error) {
	if r.current == nil {
		return Recording{}, ErrNotRecording
	}

	rec := r.current
	rec.Ended = time.Now()
	rec.Bytes = r.w.Offset()

	err := r.w.Close()
	if rec.Err != nil {
		err = rec.Err
	}

	r.current = nil
	r.w = nil
	r.enc = nil
	r.bus.watchers--

	return *rec, err
}
