// Package tracing turns replay hooks into profiling records.
package tracing

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/gsreplay/datarecording"
	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/hooking"
	"github.com/sarchlab/gsreplay/replay"
)

// Table names written by a FrameTracer.
const (
	FrameTable = "gsreplay_frames"
	RunTable   = "gsreplay_runs"
)

// FrameEntry is one row of FrameTable.
type FrameEntry struct {
	RunID         string
	Pass          uint64
	Frame         uint64
	Field         uint8
	Transactions  uint64
	TransferBytes uint64
	FIFOBytes     uint64
	RegisterBytes uint64
	Start         float64
	Duration      float64

	// Tail marks the transactions that follow the last VSync of a pass.
	// Frame is then the last frame completed before them.
	Tail bool
}

// RunEntry is one row of RunTable.
type RunEntry struct {
	RunID        string
	Dump         string
	Renderer     string
	Passes       uint64
	Frames       uint64
	Transactions uint64
	Elapsed      float64
	Aborted      bool
	Error        string
}

// A FrameTracer records the bus traffic and the wall time of every replayed
// frame. It is attached to a replay.Driver as a hook.
type FrameTracer struct {
	backend  datarecording.DataRecorder
	clock    Clock
	runID    string
	dump     string
	renderer string

	lock       sync.Mutex
	start      time.Time
	frameStart time.Time
	lastFrame  uint64
	current    FrameEntry
}

// NewFrameTracer creates a FrameTracer writing to backend. The tables are
// created if the backend does not have them yet.
func NewFrameTracer(
	backend datarecording.DataRecorder,
	clock Clock,
	dump, renderer string,
) *FrameTracer {
	if clock == nil {
		clock = WallClock
	}

	tables := backend.ListTables()
	if !slices.Contains(tables, FrameTable) {
		backend.CreateTable(FrameTable, FrameEntry{})
	}

	if !slices.Contains(tables, RunTable) {
		backend.CreateTable(RunTable, RunEntry{})
	}

	t := &FrameTracer{
		backend:  backend,
		clock:    clock,
		runID:    xid.New().String(),
		dump:     dump,
		renderer: renderer,
	}
	t.current.RunID = t.runID

	return t
}

// RunID identifies the rows of one replay.
func (t *FrameTracer) RunID() string {
	return t.runID
}

// Func implements hooking.Hook.
func (t *FrameTracer) Func(ctx hooking.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch ctx.Pos {
	case replay.HookPosBeforeTransaction:
		t.markStart()
	case replay.HookPosAfterTransaction:
		if tx, ok := ctx.Item.(*gs.Transaction); ok {
			t.count(tx)
		}
	case replay.HookPosFrame:
		if info, ok := ctx.Item.(replay.FrameInfo); ok {
			t.endFrame(info)
		}
	case replay.HookPosPassEnd:
		if passes, ok := ctx.Item.(uint64); ok && passes > 0 {
			t.endTail(passes - 1)
		}
	case replay.HookPosReplayEnd:
		stats, _ := ctx.Item.(replay.Stats)
		err, _ := ctx.Detail.(error)
		t.endTail(stats.Passes)
		t.endRun(stats, err)
	}
}

func (t *FrameTracer) markStart() {
	if !t.frameStart.IsZero() {
		return
	}

	now := t.clock.Now()
	if t.start.IsZero() {
		t.start = now
	}

	t.frameStart = now
}

func (t *FrameTracer) count(tx *gs.Transaction) {
	t.current.Transactions++

	switch tx.Kind {
	case gs.KindTransfer:
		t.current.TransferBytes += uint64(tx.Size)
	case gs.KindFIFORead:
		t.current.FIFOBytes += uint64(tx.Size)
	case gs.KindRegisterBlockRestore:
		t.current.RegisterBytes += gs.RegisterBankSize
	}
}

func (t *FrameTracer) endFrame(info replay.FrameInfo) {
	e := t.current
	e.Pass = info.Pass
	e.Frame = info.Frame
	e.Field = info.Field

	t.lastFrame = info.Frame
	t.emit(e)
}

// endTail writes the transactions issued since the last VSync, if any.
func (t *FrameTracer) endTail(pass uint64) {
	if t.current.Transactions == 0 {
		return
	}

	e := t.current
	e.Pass = pass
	e.Frame = t.lastFrame
	e.Tail = true

	t.emit(e)
}

func (t *FrameTracer) emit(e FrameEntry) {
	now := t.clock.Now()

	e.Start = t.frameStart.Sub(t.start).Seconds()
	e.Duration = now.Sub(t.frameStart).Seconds()

	t.backend.InsertData(FrameTable, e)

	t.current = FrameEntry{RunID: t.runID}
	t.frameStart = time.Time{}
}

func (t *FrameTracer) endRun(stats replay.Stats, err error) {
	e := RunEntry{
		RunID:        t.runID,
		Dump:         t.dump,
		Renderer:     t.renderer,
		Passes:       stats.Passes,
		Frames:       stats.Frames,
		Transactions: stats.Transactions,
		Elapsed:      stats.Elapsed.Seconds(),
		Aborted:      err != nil,
	}

	if err != nil {
		e.Error = fmt.Sprint(err)
	}

	t.backend.InsertData(RunTable, e)
	t.backend.Flush()
}
