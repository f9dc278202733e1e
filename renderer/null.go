package renderer

import (
	"fmt"

	"github.com/sarchlab/gsreplay/gs"
)

// Null accepts every call and draws nothing. It keeps the register bank and
// the frozen state so that Freeze returns what was last defrosted.
type Null struct {
	CRC           uint32
	Frames        uint64
	Field         uint8
	TransferBytes [4]uint64
	FIFOBytes     uint64

	regs  []byte
	state []byte
}

// NewNull creates a Null renderer.
func NewNull() *Null {
	return &Null{regs: make([]byte, gs.RegisterBankSize)}
}

// SetGameCRC implements gs.Renderer.
func (n *Null) SetGameCRC(crc uint32, _ int) {
	n.CRC = crc
}

// Freeze implements gs.Renderer.
func (n *Null) Freeze() ([]byte, error) {
	return append([]byte{}, n.state...), nil
}

// Defrost implements gs.Renderer.
func (n *Null) Defrost(state []byte) error {
	n.state = append(n.state[:0], state...)
	return nil
}

// RestoreRegisters implements gs.Renderer.
func (n *Null) RestoreRegisters(bank []byte) error {
	if len(bank) != gs.RegisterBankSize {
		return fmt.Errorf("%w: register bank of %d bytes",
			gs.ErrRendererRejected, len(bank))
	}

	copy(n.regs, bank)

	return nil
}

// Registers returns the current register bank. It must not be modified.
func (n *Null) Registers() []byte {
	return n.regs
}

// Transfer implements gs.Renderer.
func (n *Null) Transfer(path gs.Path, data []byte) error {
	if !path.Valid() {
		return fmt.Errorf("%w: path %d", gs.ErrRendererRejected, path)
	}

	n.TransferBytes[path] += uint64(len(data))

	return nil
}

// VSync implements gs.Renderer.
func (n *Null) VSync(field uint8) error {
	n.Frames++
	n.Field = field

	return nil
}

// ReadFIFO implements gs.Renderer. The FIFO of a renderer that draws nothing
// reads back zeros.
func (n *Null) ReadFIFO(dst []byte) error {
	clear(dst)
	n.FIFOBytes += uint64(len(dst))

	return nil
}

var _ gs.Renderer = (*Null)(nil)
