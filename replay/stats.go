package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/sarchlab/gsreplay/gs"
)

// Stats counts what a Driver has issued so far.
type Stats struct {
	Passes        uint64
	Frames        uint64
	Transactions  uint64
	TransferBytes uint64
	FIFOBytes     uint64
	RegisterBytes uint64
	Elapsed       time.Duration
}

func (s *Stats) add(t *gs.Transaction) {
	s.Transactions++

	switch t.Kind {
	case gs.KindTransfer:
		s.TransferBytes += uint64(t.Size)
	case gs.KindVSync:
		s.Frames++
	case gs.KindFIFORead:
		s.FIFOBytes += uint64(t.Size)
	case gs.KindRegisterBlockRestore:
		s.RegisterBytes += gs.RegisterBankSize
	}
}

// FPS returns the frame rate of the replay.
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}

	return float64(s.Frames) / s.Elapsed.Seconds()
}

// WriteBandwidthReport prints the bus traffic per frame in KB.
func (s Stats) WriteBandwidthReport(w io.Writer) {
	frames := s.Frames
	if frames == 0 {
		frames = 1
	}

	perFrame := func(b uint64) float64 {
		return float64(b) / 1024 / float64(frames)
	}

	fmt.Fprintf(w,
		"bus bandwidth. T: %.3f KB/f. R: %.3f KB/f. P: %.3f KB/f\n",
		perFrame(s.TransferBytes),
		perFrame(s.FIFOBytes),
		perFrame(s.RegisterBytes))
	fmt.Fprintf(w, "%d passes, %d frames, %d transactions in %s (%.1f fps)\n",
		s.Passes, s.Frames, s.Transactions,
		s.Elapsed.Round(time.Millisecond), s.FPS())
}
