package codec

import (
	"fmt"

	"github.com/sarchlab/gsreplay/container"
	"github.com/sarchlab/gsreplay/gs"
)

// An Encoder appends transactions to a container, field for field in the
// order the Decoder reads them.
type Encoder struct {
	w     *container.Writer
	count uint64
}

// NewEncoder creates an Encoder. The header must already be written.
func NewEncoder(w *container.Writer) *Encoder {
	return &Encoder{w: w}
}

// Count returns the number of transactions encoded so far.
func (e *Encoder) Count() uint64 {
	return e.count
}

// Encode appends t.
func (e *Encoder) Encode(t *gs.Transaction) error {
	if err := e.validate(t); err != nil {
		return err
	}

	if err := e.w.WriteU8(uint8(t.Kind)); err != nil {
		return err
	}

	var err error

	switch t.Kind {
	case gs.KindTransfer:
		err = e.encodeTransfer(t)
	case gs.KindVSync:
		err = e.w.WriteU8(t.Field)
	case gs.KindFIFORead:
		err = e.w.WriteU32(t.Size)
	case gs.KindRegisterBlockRestore:
		_, err = e.w.Write(t.Data)
	}

	if err != nil {
		return err
	}

	e.count++

	return nil
}

func (e *Encoder) encodeTransfer(t *gs.Transaction) error {
	if err := e.w.WriteU8(uint8(t.Path)); err != nil {
		return err
	}

	if err := e.w.WriteU32(t.Size); err != nil {
		return err
	}

	_, err := e.w.Write(t.Payload())

	return err
}

func (e *Encoder) validate(t *gs.Transaction) error {
	switch t.Kind {
	case gs.KindTransfer:
		if !t.Path.Valid() {
			return fmt.Errorf("invalid transfer path %d", t.Path)
		}

		if t.Path == gs.Path1 {
			if len(t.Data) != gs.Path1Capacity ||
				t.Addr != gs.Path1Capacity-t.Size {
				return fmt.Errorf("path 1 transfer is not right aligned "+
					"in a %d byte buffer", gs.Path1Capacity)
			}

			return nil
		}

		if uint32(len(t.Data)) != t.Size {
			return fmt.Errorf("transfer declares %d bytes but carries %d",
				t.Size, len(t.Data))
		}
	case gs.KindRegisterBlockRestore:
		if len(t.Data) != gs.RegisterBankSize {
			return fmt.Errorf("register block is %d bytes, want %d",
				len(t.Data), gs.RegisterBankSize)
		}
	case gs.KindVSync, gs.KindFIFORead:
	default:
		return fmt.Errorf("unknown transaction kind %d", t.Kind)
	}

	return nil
}
