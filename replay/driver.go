// Package replay drives a renderer through a recorded GS bus session.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/hooking"
	"github.com/sarchlab/gsreplay/txlog"
)

// ErrNotLoaded is returned by Run when no log has been loaded.
var ErrNotLoaded = errors.New("no transaction log loaded")

// ErrAlreadyStarted is returned when a driver is loaded or run twice.
var ErrAlreadyStarted = errors.New("driver already started")

// A Driver issues the transactions of a log to a renderer, one at a time, in
// log order.
type Driver struct {
	*hooking.HookableBase

	renderer gs.Renderer
	policy   LoopPolicy
	activity Activity
	logger   *log.Logger

	state atomic.Int32
	log   *txlog.Log

	scratch []byte

	statsLock sync.Mutex
	stats     Stats
	position  int

	pauseLock sync.Mutex
	isPaused  bool
	resume    chan struct{}
}

// State returns the current lifecycle stage. It may be called from any
// goroutine.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Policy returns the loop policy.
func (d *Driver) Policy() LoopPolicy {
	return d.policy
}

// Log returns the loaded log, or nil.
func (d *Driver) Log() *txlog.Log {
	return d.log
}

// Stats returns a snapshot of the counters. It may be called from any
// goroutine.
func (d *Driver) Stats() Stats {
	d.statsLock.Lock()
	defer d.statsLock.Unlock()

	return d.stats
}

// Position returns the index of the next transaction in the current pass.
func (d *Driver) Position() int {
	d.statsLock.Lock()
	defer d.statsLock.Unlock()

	return d.position
}

// Load hands a fully decoded log to the driver.
func (d *Driver) Load(l *txlog.Log) error {
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateLoaded)) {
		return ErrAlreadyStarted
	}

	d.log = l

	return nil
}

// LoadFile decodes path on fs and loads it. On error the driver stays idle
// and the file is released.
func (d *Driver) LoadFile(fs afero.Fs, path string, opts txlog.LoadOptions) error {
	if d.State() != StateIdle {
		return ErrAlreadyStarted
	}

	l, err := txlog.LoadFile(fs, path, opts)
	if err != nil {
		return err
	}

	return d.Load(l)
}

// Pause holds the driver at the next VSync boundary until Continue.
func (d *Driver) Pause() {
	d.pauseLock.Lock()
	defer d.pauseLock.Unlock()

	if d.isPaused {
		return
	}

	d.isPaused = true
	d.resume = make(chan struct{})
}

// Continue releases a paused driver.
func (d *Driver) Continue() {
	d.pauseLock.Lock()
	defer d.pauseLock.Unlock()

	if !d.isPaused {
		return
	}

	d.isPaused = false
	close(d.resume)
}

// IsPaused reports whether Pause is in effect.
func (d *Driver) IsPaused() bool {
	d.pauseLock.Lock()
	defer d.pauseLock.Unlock()

	return d.isPaused
}

// waitWhilePaused returns once the driver is continued or has a reason to
// stop.
func (d *Driver) waitWhilePaused(ctx context.Context) {
	if !d.IsPaused() {
		return
	}

	var (
		inactive <-chan struct{}
		poll     <-chan time.Time
	)

	if n, ok := d.activity.(Notifier); ok {
		inactive = n.Done()
	} else {
		ticker := time.NewTicker(inactivePollInterval)
		defer ticker.Stop()

		poll = ticker.C
	}

	for {
		d.pauseLock.Lock()
		if !d.isPaused {
			d.pauseLock.Unlock()
			return
		}

		resume := d.resume
		d.pauseLock.Unlock()

		if !d.activity.Active() {
			return
		}

		select {
		case <-resume:
		case <-ctx.Done():
			return
		case <-inactive:
			return
		case <-poll:
		}
	}
}

// Run primes the renderer with the session header and replays the log
// according to the loop policy. It returns when the policy is satisfied, the
// context is cancelled, the activity goes inactive, or the renderer rejects a
// call. Only the last case is an error; the driver is then Aborted.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	if !d.state.CompareAndSwap(int32(StateLoaded), int32(StateRunning)) {
		if d.State() == StateIdle {
			return Stats{}, ErrNotLoaded
		}

		return d.Stats(), ErrAlreadyStarted
	}

	start := time.Now()

	err := d.prime()
	if err == nil {
		err = d.loop(ctx)
	}

	d.statsLock.Lock()
	d.stats.Elapsed = time.Since(start)
	stats := d.stats
	d.statsLock.Unlock()

	ctxEnd := hooking.HookCtx{Domain: d, Pos: HookPosReplayEnd, Item: stats}

	if err != nil {
		d.state.Store(int32(StateAborted))
		ctxEnd.Detail = err
		d.InvokeHook(ctxEnd)
		d.logger.Printf("replay aborted after %d frames: %v", stats.Frames, err)

		return stats, err
	}

	d.state.Store(int32(StateFinished))
	d.InvokeHook(ctxEnd)

	return stats, nil
}

func (d *Driver) prime() error {
	h := d.log.Header()

	d.renderer.SetGameCRC(h.GameCRC, 0)

	if err := d.renderer.Defrost(h.FrozenState); err != nil {
		return rejected("defrost", err)
	}

	if err := d.renderer.RestoreRegisters(h.Registers); err != nil {
		return rejected("initial registers", err)
	}

	if err := d.renderer.VSync(1); err != nil {
		return rejected("initial vsync", err)
	}

	return nil
}

func (d *Driver) loop(ctx context.Context) error {
	txs := d.log.Transactions()
	hooked := d.NumHooks() > 0

	for pass := uint64(0); d.policy.wantsPass(pass); pass++ {
		for i, t := range txs {
			if hooked {
				d.InvokeHook(hooking.HookCtx{
					Domain: d, Pos: HookPosBeforeTransaction, Item: t, Detail: i,
				})
			}

			if err := d.issue(t); err != nil {
				return fmt.Errorf("transaction %d (%s): %w", i, t, err)
			}

			d.statsLock.Lock()
			d.stats.add(t)
			d.position = i + 1
			frame := d.stats.Frames
			d.statsLock.Unlock()

			if hooked {
				d.InvokeHook(hooking.HookCtx{
					Domain: d, Pos: HookPosAfterTransaction, Item: t, Detail: i,
				})
			}

			if t.Kind != gs.KindVSync {
				continue
			}

			if hooked {
				d.InvokeHook(hooking.HookCtx{
					Domain: d,
					Pos:    HookPosFrame,
					Item:   FrameInfo{Pass: pass, Frame: frame, Field: t.Field},
				})
			}

			if d.shouldStop(ctx) {
				return nil
			}
		}

		d.statsLock.Lock()
		d.stats.Passes++
		d.position = 0
		d.statsLock.Unlock()

		d.InvokeHook(hooking.HookCtx{Domain: d, Pos: HookPosPassEnd, Item: pass + 1})

		if d.shouldStop(ctx) {
			return nil
		}

		if d.policy.PassDelay > 0 && d.policy.wantsPass(pass+1) {
			if !d.sleep(ctx, d.policy.PassDelay) {
				return nil
			}
		}
	}

	return nil
}

// shouldStop is evaluated between frames only, so a transaction is never cut
// in half.
func (d *Driver) shouldStop(ctx context.Context) bool {
	d.waitWhilePaused(ctx)

	return ctx.Err() != nil || !d.activity.Active()
}

func (d *Driver) sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Driver) issue(t *gs.Transaction) error {
	var err error

	switch t.Kind {
	case gs.KindTransfer:
		err = d.renderer.Transfer(t.Path, t.Payload())
	case gs.KindVSync:
		err = d.renderer.VSync(t.Field)
	case gs.KindFIFORead:
		if uint32(cap(d.scratch)) < t.Size {
			d.scratch = make([]byte, t.Size)
		}

		err = d.renderer.ReadFIFO(d.scratch[:t.Size])
	case gs.KindRegisterBlockRestore:
		err = d.renderer.RestoreRegisters(t.Data)
	default:
		return fmt.Errorf("unknown transaction kind %d", t.Kind)
	}

	if err != nil {
		return rejected(t.Kind.String(), err)
	}

	return nil
}

func rejected(what string, err error) error {
	if errors.Is(err, gs.ErrRendererRejected) {
		return fmt.Errorf("%s: %w", what, err)
	}

	return fmt.Errorf("%s: %w: %w", what, gs.ErrRendererRejected, err)
}
