package replay

import (
	"strconv"
	"time"
)

// LoopPolicy decides what happens when the end of the log is reached.
type LoopPolicy struct {
	// Repeat is the number of passes over the log in bounded mode.
	Repeat int

	// Continuous restarts from the first transaction forever. Repeat is
	// ignored.
	Continuous bool

	// PassDelay is slept between passes.
	PassDelay time.Duration
}

// Bounded replays the log n times, then finishes.
func Bounded(n int) LoopPolicy {
	return LoopPolicy{Repeat: n}
}

// Continuous replays the log until the driver is stopped, sleeping delay
// between passes.
func Continuous(delay time.Duration) LoopPolicy {
	return LoopPolicy{Continuous: true, PassDelay: delay}
}

// wantsPass reports whether a pass with the given zero based index should
// run.
func (p LoopPolicy) wantsPass(pass uint64) bool {
	return p.Continuous || pass < uint64(p.Repeat)
}

func (p LoopPolicy) String() string {
	if p.Continuous {
		if p.PassDelay > 0 {
			return "continuous, " + p.PassDelay.String() + " between passes"
		}

		return "continuous"
	}

	if p.Repeat == 1 {
		return "bounded, 1 pass"
	}

	return "bounded, " + strconv.Itoa(p.Repeat) + " passes"
}
