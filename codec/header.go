package codec

import (
	"fmt"

	"github.com/sarchlab/gsreplay/container"
	"github.com/sarchlab/gsreplay/gs"
)

// ReadHeader loads the session preamble. It must be the first read from a
// freshly opened container. Any failure is reported as ErrCorruptDump.
func ReadHeader(r *container.Reader, maxPayload uint32) (*gs.Header, error) {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}

	crc, err := r.ReadU32()
	if err != nil {
		return nil, corruptRead(r.Offset(), "game CRC", err)
	}

	size, err := r.ReadU32()
	if err != nil {
		return nil, corruptRead(r.Offset(), "frozen state size", err)
	}

	if size > maxPayload {
		return nil, fmt.Errorf("%w: %w: frozen state of %d bytes",
			ErrCorruptDump, ErrPayloadTooLarge, size)
	}

	h := &gs.Header{
		GameCRC:     crc,
		FrozenState: make([]byte, size),
		Registers:   make([]byte, gs.RegisterBankSize),
	}

	if err := r.ReadExact(h.FrozenState); err != nil {
		return nil, corruptRead(r.Offset(), "frozen state", err)
	}

	if err := r.ReadExact(h.Registers); err != nil {
		return nil, corruptRead(r.Offset(), "register bank", err)
	}

	return h, nil
}

// WriteHeader writes the session preamble. It must precede every
// transaction in the container.
func WriteHeader(w *container.Writer, h *gs.Header) error {
	if len(h.Registers) != gs.RegisterBankSize {
		return fmt.Errorf("register bank is %d bytes, want %d",
			len(h.Registers), gs.RegisterBankSize)
	}

	if err := w.WriteU32(h.GameCRC); err != nil {
		return err
	}

	if err := w.WriteU32(uint32(len(h.FrozenState))); err != nil {
		return err
	}

	if _, err := w.Write(h.FrozenState); err != nil {
		return err
	}

	_, err := w.Write(h.Registers)

	return err
}
