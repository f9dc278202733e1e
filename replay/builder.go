package replay

import (
	"log"
	"os"

	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/hooking"
)

// Builder configures and creates Drivers.
type Builder struct {
	renderer gs.Renderer
	policy   LoopPolicy
	activity Activity
	logger   *log.Logger
	hooks    []hooking.Hook
}

// MakeBuilder creates a Builder for a single bounded pass.
func MakeBuilder() Builder {
	return Builder{
		policy:   Bounded(1),
		activity: AlwaysActive,
	}
}

// WithRenderer sets the renderer that receives the bus calls.
func (b Builder) WithRenderer(r gs.Renderer) Builder {
	b.renderer = r
	return b
}

// WithLoopPolicy sets what happens at the end of the log.
func (b Builder) WithLoopPolicy(p LoopPolicy) Builder {
	b.policy = p
	return b
}

// WithActivity sets the visibility source polled at each VSync.
func (b Builder) WithActivity(a Activity) Builder {
	b.activity = a
	return b
}

// WithLogger sets the logger for driver status messages.
func (b Builder) WithLogger(l *log.Logger) Builder {
	b.logger = l
	return b
}

// WithHook attaches a hook to every driver built.
func (b Builder) WithHook(h hooking.Hook) Builder {
	b.hooks = append(append([]hooking.Hook(nil), b.hooks...), h)
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.renderer == nil {
		log.Panic("replay driver needs a renderer")
	}

	if !b.policy.Continuous && b.policy.Repeat < 0 {
		log.Panicf("negative repeat count %d", b.policy.Repeat)
	}
}

// Build creates an idle Driver.
func (b Builder) Build() *Driver {
	b.parametersMustBeValid()

	d := &Driver{
		HookableBase: hooking.NewHookableBase(),
		renderer:     b.renderer,
		policy:       b.policy,
		activity:     b.activity,
		logger:       b.logger,
	}

	if d.activity == nil {
		d.activity = AlwaysActive
	}

	if d.logger == nil {
		d.logger = log.New(os.Stderr, "gsreplay: ", log.LstdFlags)
	}

	for _, h := range b.hooks {
		d.AcceptHook(h)
	}

	return d
}
