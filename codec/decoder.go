package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/gsreplay/container"
	"github.com/sarchlab/gsreplay/gs"
)

// A Decoder reads transactions one at a time from a container whose header
// has already been consumed.
type Decoder struct {
	r          *container.Reader
	maxPayload uint32
	count      uint64
}

// NewDecoder creates a Decoder. A zero maxPayload selects
// DefaultMaxPayload.
func NewDecoder(r *container.Reader, maxPayload uint32) *Decoder {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}

	return &Decoder{r: r, maxPayload: maxPayload}
}

// Count returns the number of transactions decoded so far.
func (d *Decoder) Count() uint64 {
	return d.count
}

// DecodeOne decodes the next transaction. It returns io.EOF only when the
// container ends cleanly where a record would start. Running out of bytes
// anywhere else, or a compressed stream cut short, is ErrCorruptDump, and no
// partial transaction is returned.
func (d *Decoder) DecodeOne() (*gs.Transaction, error) {
	start := d.r.Offset()

	tag, err := d.r.ReadU8()
	if err != nil {
		var te *container.TruncatedError
		if errors.As(err, &te) && te.AtEnd {
			return nil, io.EOF
		}

		return nil, corruptRead(start, "transaction kind", err)
	}

	t := &gs.Transaction{Kind: gs.Kind(tag)}

	switch t.Kind {
	case gs.KindTransfer:
		err = d.decodeTransfer(t)
	case gs.KindVSync:
		t.Field, err = d.r.ReadU8()
		if err != nil {
			err = corruptRead(start, "vsync field", err)
		}
	case gs.KindFIFORead:
		err = d.decodeFIFORead(t)
	case gs.KindRegisterBlockRestore:
		t.Data = make([]byte, gs.RegisterBankSize)
		if rerr := d.r.ReadExact(t.Data); rerr != nil {
			err = corruptRead(start, "register block", rerr)
		}
	default:
		err = corrupt(start, "unknown transaction kind %d", tag)
	}

	if err != nil {
		return nil, err
	}

	d.count++

	return t, nil
}

func (d *Decoder) decodeTransfer(t *gs.Transaction) error {
	start := d.r.Offset() - 1

	path, err := d.r.ReadU8()
	if err != nil {
		return corruptRead(start, "transfer path", err)
	}

	t.Path = gs.Path(path)
	if !t.Path.Valid() {
		return corrupt(start, "unknown transfer path %d", path)
	}

	t.Size, err = d.r.ReadU32()
	if err != nil {
		return corruptRead(start, "transfer size", err)
	}

	if t.Path == gs.Path1 {
		if t.Size > gs.Path1Capacity {
			return corrupt(start,
				"path 1 transfer of %d bytes exceeds %d byte buffer",
				t.Size, gs.Path1Capacity)
		}

		t.Data = make([]byte, gs.Path1Capacity)
		t.Addr = gs.Path1Capacity - t.Size
	} else {
		if t.Size > d.maxPayload {
			return fmt.Errorf("%w: transfer of %d bytes at offset %d",
				ErrPayloadTooLarge, t.Size, start)
		}

		t.Data = make([]byte, t.Size)
	}

	if err := d.r.ReadExact(t.Data[t.Addr:]); err != nil {
		return corruptRead(start, "transfer payload", err)
	}

	return nil
}

func (d *Decoder) decodeFIFORead(t *gs.Transaction) error {
	start := d.r.Offset() - 1

	size, err := d.r.ReadU32()
	if err != nil {
		return corruptRead(start, "readback size", err)
	}

	if size > d.maxPayload {
		return fmt.Errorf("%w: readback of %d bytes at offset %d",
			ErrPayloadTooLarge, size, start)
	}

	t.Size = size

	return nil
}
