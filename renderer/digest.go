package renderer

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/sarchlab/gsreplay/gs"
)

// Digest hashes every call and its arguments before passing it on. Two runs
// that issue the same calls in the same order end with the same Sum64.
type Digest struct {
	next  gs.Renderer
	hash  *xxhash.Digest
	calls uint64
	scr   [9]byte
}

// NewDigest creates a Digest in front of next.
func NewDigest(next gs.Renderer) *Digest {
	return &Digest{next: next, hash: xxhash.New()}
}

// Sum64 returns the hash of all calls so far.
func (d *Digest) Sum64() uint64 {
	return d.hash.Sum64()
}

// Calls returns the number of calls hashed.
func (d *Digest) Calls() uint64 {
	return d.calls
}

func (d *Digest) String() string {
	return fmt.Sprintf("%016x", d.Sum64())
}

func (d *Digest) record(op byte, arg uint32, data []byte) {
	d.calls++
	d.scr[0] = op
	binary.LittleEndian.PutUint32(d.scr[1:5], arg)
	binary.LittleEndian.PutUint32(d.scr[5:9], uint32(len(data)))
	d.hash.Write(d.scr[:])
	d.hash.Write(data)
}

// SetGameCRC implements gs.Renderer.
func (d *Digest) SetGameCRC(crc uint32, options int) {
	d.record('C', crc, nil)
	d.next.SetGameCRC(crc, options)
}

// Freeze implements gs.Renderer.
func (d *Digest) Freeze() ([]byte, error) {
	return d.next.Freeze()
}

// Defrost implements gs.Renderer.
func (d *Digest) Defrost(state []byte) error {
	d.record('D', 0, state)
	return d.next.Defrost(state)
}

// RestoreRegisters implements gs.Renderer.
func (d *Digest) RestoreRegisters(bank []byte) error {
	d.record('R', 0, bank)
	return d.next.RestoreRegisters(bank)
}

// Transfer implements gs.Renderer.
func (d *Digest) Transfer(path gs.Path, data []byte) error {
	d.record('T', uint32(path), data)
	return d.next.Transfer(path, data)
}

// VSync implements gs.Renderer.
func (d *Digest) VSync(field uint8) error {
	d.record('V', uint32(field), nil)
	return d.next.VSync(field)
}

// ReadFIFO implements gs.Renderer. Only the size is hashed; the contents are
// the renderer's business.
func (d *Digest) ReadFIFO(dst []byte) error {
	d.record('F', uint32(len(dst)), nil)
	return d.next.ReadFIFO(dst)
}

var _ gs.Renderer = (*Digest)(nil)
