package gs

import "errors"

// ErrRendererRejected is returned when the renderer refuses a call, for
// example because its device was lost. Replay stops; it is not retried.
var ErrRendererRejected = errors.New("renderer rejected the call")

// Renderer is the device backend that sits on the far side of the bus. It
// owns all drawing, texture and video output state.
//
// Byte slices passed in are borrowed for the duration of the call only.
type Renderer interface {
	// SetGameCRC tells the renderer which title is running.
	SetGameCRC(crc uint32, options int)

	// Freeze serializes the complete device state.
	Freeze() ([]byte, error)

	// Defrost restores a state produced by Freeze.
	Defrost(state []byte) error

	// RestoreRegisters overwrites the privileged register bank.
	RestoreRegisters(bank []byte) error

	// Transfer pushes data into the given path. The length of data is always
	// a whole number of bytes, the GS consumes it in QWordSize units.
	Transfer(path Path, data []byte) error

	// VSync ends a field. The renderer may pump host window events here.
	VSync(field uint8) error

	// ReadFIFO fills dst from the GS output FIFO.
	ReadFIFO(dst []byte) error
}
