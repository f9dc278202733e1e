package tracing

import "time"

// A Clock tells the wall time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// WallClock reads time.Now.
var WallClock Clock = wallClock{}
