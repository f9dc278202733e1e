package gs

import "fmt"

const (
	// RegisterBankSize is the size of the privileged register bank.
	RegisterBankSize = 0x2000

	// Path1Capacity is the size of the scratch buffer that path 1 transfers
	// are placed in. Payloads are right aligned within it.
	Path1Capacity = 0x4000

	// QWordSize is the unit the GS counts transfer and readback sizes in.
	QWordSize = 16
)

// Kind tells which of the four bus transactions a Transaction is.
type Kind uint8

// The values are the tags used in the dump stream.
const (
	KindTransfer Kind = iota
	KindVSync
	KindFIFORead
	KindRegisterBlockRestore
)

func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "Transfer"
	case KindVSync:
		return "VSync"
	case KindFIFORead:
		return "FIFORead"
	case KindRegisterBlockRestore:
		return "RegisterBlockRestore"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k <= KindRegisterBlockRestore
}

// Path selects the data path a Transfer is pushed into.
type Path uint8

const (
	// Path1 transfers come from the VU1 kick. Their payload sits at the end
	// of a Path1Capacity buffer, the way the DMA left it on hardware.
	Path1 Path = iota
	Path2
	Path3
	// PathGeneric is the catch-all transfer entry point.
	PathGeneric
)

func (p Path) String() string {
	switch p {
	case Path1:
		return "PATH1"
	case Path2:
		return "PATH2"
	case Path3:
		return "PATH3"
	case PathGeneric:
		return "GENERIC"
	default:
		return fmt.Sprintf("Path(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the four paths.
func (p Path) Valid() bool {
	return p <= PathGeneric
}

// A Transaction is one event on the GS bus. Which fields are meaningful
// depends on Kind:
//
//	Transfer:             Path, Size, Addr, Data
//	VSync:                Field
//	FIFORead:             Size
//	RegisterBlockRestore: Data (RegisterBankSize bytes)
//
// A Transaction owns Data. Renderers only borrow it for the duration of a
// call.
type Transaction struct {
	Kind  Kind
	Path  Path
	Field uint8
	Size  uint32
	Addr  uint32
	Data  []byte
}

// NewTransfer builds a Transfer carrying a copy of payload. Path1 payloads
// are placed at the end of a Path1Capacity buffer.
func NewTransfer(path Path, payload []byte) (*Transaction, error) {
	if !path.Valid() {
		return nil, fmt.Errorf("invalid transfer path %d", path)
	}

	t := &Transaction{
		Kind: KindTransfer,
		Path: path,
		Size: uint32(len(payload)),
	}

	if path == Path1 {
		if len(payload) > Path1Capacity {
			return nil, fmt.Errorf(
				"path 1 transfer of %d bytes exceeds %d byte buffer",
				len(payload), Path1Capacity)
		}

		t.Data = make([]byte, Path1Capacity)
		t.Addr = Path1Capacity - t.Size
		copy(t.Data[t.Addr:], payload)

		return t, nil
	}

	t.Data = append([]byte{}, payload...)

	return t, nil
}

// NewVSync builds a VSync for the given field.
func NewVSync(field uint8) *Transaction {
	return &Transaction{Kind: KindVSync, Field: field}
}

// NewFIFORead builds a readback of size bytes.
func NewFIFORead(size uint32) *Transaction {
	return &Transaction{Kind: KindFIFORead, Size: size}
}

// NewRegisterBlockRestore builds a register restore from a copy of bank.
func NewRegisterBlockRestore(bank []byte) (*Transaction, error) {
	if len(bank) != RegisterBankSize {
		return nil, fmt.Errorf(
			"register bank is %d bytes, want %d", len(bank), RegisterBankSize)
	}

	return &Transaction{
		Kind: KindRegisterBlockRestore,
		Data: append([]byte(nil), bank...),
	}, nil
}

// Payload returns the bytes a Transfer pushes into the GS. For Path1 this is
// the tail of the scratch buffer starting at Addr.
func (t *Transaction) Payload() []byte {
	if t.Kind != KindTransfer {
		return t.Data
	}

	if t.Path == Path1 {
		return t.Data[t.Addr:]
	}

	return t.Data
}

// WireSize returns the number of bytes the transaction occupies in a dump,
// including the kind tag.
func (t *Transaction) WireSize() int {
	switch t.Kind {
	case KindTransfer:
		return 1 + 1 + 4 + int(t.Size)
	case KindVSync:
		return 1 + 1
	case KindFIFORead:
		return 1 + 4
	case KindRegisterBlockRestore:
		return 1 + RegisterBankSize
	default:
		return 1
	}
}

func (t *Transaction) String() string {
	switch t.Kind {
	case KindTransfer:
		return fmt.Sprintf("Transfer(%s, %d bytes)", t.Path, t.Size)
	case KindVSync:
		return fmt.Sprintf("VSync(%d)", t.Field)
	case KindFIFORead:
		return fmt.Sprintf("FIFORead(%d bytes)", t.Size)
	default:
		return t.Kind.String()
	}
}
