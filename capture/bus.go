// Package capture records the live GS bus into a dump.
package capture

import (
	"fmt"
	"sync"

	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/hooking"
)

// HookPosTransaction fires for every transaction that crosses the live bus,
// before the renderer sees it. Item is the *gs.Transaction.
var HookPosTransaction = &hooking.HookPos{Name: "BusTransaction"}

// A Bus sits between the host and the renderer during normal operation. It
// forwards every call and, while someone is watching, lets hooks observe each
// one as a transaction. Bus calls are serialized.
type Bus struct {
	*hooking.HookableBase

	renderer gs.Renderer

	lock     sync.Mutex
	crc      uint32
	regs     []byte
	watchers int
}

// NewBus creates a Bus in front of renderer with a zeroed register bank.
func NewBus(renderer gs.Renderer) *Bus {
	return &Bus{
		HookableBase: hooking.NewHookableBase(),
		renderer:     renderer,
		regs:         make([]byte, gs.RegisterBankSize),
	}
}

// Renderer returns the renderer behind the bus.
func (b *Bus) Renderer() gs.Renderer {
	return b.renderer
}

// Watch turns transaction observation on until the returned function is
// called. Without a watcher, calls are forwarded without building
// transactions.
func (b *Bus) Watch() (release func()) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.watchers++

	var once sync.Once

	return func() {
		once.Do(func() {
			b.lock.Lock()
			defer b.lock.Unlock()

			b.watchers--
		})
	}
}

func (b *Bus) watched() bool {
	return b.watchers > 0 && b.NumHooks() > 0
}

func (b *Bus) observe(t *gs.Transaction) {
	b.InvokeHook(hooking.HookCtx{Domain: b, Pos: HookPosTransaction, Item: t})
}

// SetGameCRC records the running title and passes it on.
func (b *Bus) SetGameCRC(crc uint32, options int) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.crc = crc
	b.renderer.SetGameCRC(crc, options)
}

// GameCRC returns the last CRC set.
func (b *Bus) GameCRC() uint32 {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.crc
}

// Freeze serializes the renderer state.
func (b *Bus) Freeze() ([]byte, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.renderer.Freeze()
}

// Defrost restores the renderer state.
func (b *Bus) Defrost(state []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.renderer.Defrost(state)
}

// Registers returns a copy of the register bank.
func (b *Bus) Registers() []byte {
	b.lock.Lock()
	defer b.lock.Unlock()

	return append([]byte(nil), b.regs...)
}

// RestoreRegisters overwrites the register bank as the host does through
// shared memory. It is not a transaction of its own; the bank is captured at
// the next VSync.
func (b *Bus) RestoreRegisters(bank []byte) error {
	if len(bank) != gs.RegisterBankSize {
		return fmt.Errorf("register bank is %d bytes, want %d",
			len(bank), gs.RegisterBankSize)
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	copy(b.regs, bank)

	return b.renderer.RestoreRegisters(b.regs)
}

// Transfer pushes data into a path.
func (b *Bus) Transfer(path gs.Path, data []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.watched() {
		t, err := gs.NewTransfer(path, data)
		if err != nil {
			return err
		}

		b.observe(t)
	}

	return b.renderer.Transfer(path, data)
}

// VSync ends a field. Observers see the register bank as it is at the frame
// boundary, then the VSync itself.
func (b *Bus) VSync(field uint8) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.watched() {
		regs, err := gs.NewRegisterBlockRestore(b.regs)
		if err != nil {
			return err
		}

		b.observe(regs)
		b.observe(gs.NewVSync(field))
	}

	return b.renderer.VSync(field)
}

// ReadFIFO reads back len(dst) bytes.
func (b *Bus) ReadFIFO(dst []byte) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.watched() {
		b.observe(gs.NewFIFORead(uint32(len(dst))))
	}

	return b.renderer.ReadFIFO(dst)
}

// exclusive runs f with the bus locked, so that no transaction crosses the
// bus while f runs.
func (b *Bus) exclusive(f func()) {
	b.lock.Lock()
	defer b.lock.Unlock()

	f()
}

var _ gs.Renderer = (*Bus)(nil)
