package replay

import (
	"sync"
	"time"
)

// Activity tells the driver whether the surface it renders to is still
// there. It is polled at VSync boundaries, possibly from another goroutine
// than the one that changes it.
type Activity interface {
	Active() bool
}

type alwaysActive struct{}

func (alwaysActive) Active() bool { return true }

func (alwaysActive) Done() <-chan struct{} { return nil }

// AlwaysActive never asks the driver to stop.
var AlwaysActive Notifier = alwaysActive{}

// A Notifier is an Activity that can also signal when it goes inactive, so
// that a paused driver wakes up without polling.
type Notifier interface {
	Activity
	Done() <-chan struct{}
}

// A Window tracks the visibility of the display surface. It only ever goes
// from open to closed.
type Window struct {
	once   sync.Once
	closed chan struct{}
}

// NewWindow creates an open Window.
func NewWindow() *Window {
	return &Window{closed: make(chan struct{})}
}

// Close marks the window closed. The driver finishes at the next VSync, or
// right away if it is paused. Closing twice is harmless.
func (w *Window) Close() {
	w.once.Do(func() { close(w.closed) })
}

// Active reports whether the window is still open.
func (w *Window) Active() bool {
	select {
	case <-w.closed:
		return false
	default:
		return true
	}
}

// Done is closed when the window closes.
func (w *Window) Done() <-chan struct{} {
	return w.closed
}

var _ Notifier = (*Window)(nil)

// inactivePollInterval is how often a paused driver checks an Activity that
// cannot notify.
const inactivePollInterval = 50 * time.Millisecond
