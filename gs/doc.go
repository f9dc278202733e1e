// Package gs defines the transactions that cross the bus between a host and
// the GS, the preamble of a dump session, and the renderer that consumes the
// bus on the far side.
//
// A dump is a header followed by a flat stream of transactions:
//
//	u32 game CRC
//	u32 length, [length]byte frozen state
//	[RegisterBankSize]byte registers
//	repeat until EOF:
//	  u8 kind
//	  Transfer:             u8 path, u32 size, [size]byte payload
//	  VSync:                u8 field
//	  FIFORead:             u32 size
//	  RegisterBlockRestore: [RegisterBankSize]byte registers
//
// All integers are little endian.
package gs
