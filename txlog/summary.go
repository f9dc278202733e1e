package txlog

import "github.com/sarchlab/gsreplay/gs"

// Summary counts what a log contains.
type Summary struct {
	Transactions     uint64
	Frames           uint64
	Transfers        [4]uint64
	TransferBytes    [4]uint64
	FIFOReads        uint64
	FIFOBytes        uint64
	MaxFIFORead      uint32
	RegisterRestores uint64
}

func (s *Summary) add(t *gs.Transaction) {
	s.Transactions++

	switch t.Kind {
	case gs.KindTransfer:
		s.Transfers[t.Path]++
		s.TransferBytes[t.Path] += uint64(t.Size)
	case gs.KindVSync:
		s.Frames++
	case gs.KindFIFORead:
		s.FIFOReads++
		s.FIFOBytes += uint64(t.Size)
		if t.Size > s.MaxFIFORead {
			s.MaxFIFORead = t.Size
		}
	case gs.KindRegisterBlockRestore:
		s.RegisterRestores++
	}
}

// TotalTransferBytes sums the transfer bytes over all paths.
func (s Summary) TotalTransferBytes() uint64 {
	var total uint64
	for _, b := range s.TransferBytes {
		total += b
	}

	return total
}
