package gs

import "fmt"

// Header is the preamble of a dump. It seeds the renderer before the first
// transaction and is not modified after it is loaded.
type Header struct {
	GameCRC     uint32
	FrozenState []byte
	Registers   []byte
}

// NewHeader builds a header, copying state and registers.
func NewHeader(crc uint32, state, registers []byte) (*Header, error) {
	if len(registers) != RegisterBankSize {
		return nil, fmt.Errorf(
			"register bank is %d bytes, want %d",
			len(registers), RegisterBankSize)
	}

	return &Header{
		GameCRC:     crc,
		FrozenState: append([]byte{}, state...),
		Registers:   append([]byte(nil), registers...),
	}, nil
}

// WireSize returns the number of bytes the header occupies in a dump.
func (h *Header) WireSize() int {
	return 4 + 4 + len(h.FrozenState) + RegisterBankSize
}
