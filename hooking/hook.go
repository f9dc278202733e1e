// Package hooking lets observers attach to the call sites of the GS bus and
// the replay driver without those components knowing who is listening.
package hooking

import "log"

// HookPos names a place where hooks are fired.
type HookPos struct {
	Name string
}

// HookCtx carries what a hook needs to know about the site that fired it.
type HookCtx struct {
	// Domain is the object that fired the hook.
	Domain Hookable

	// Pos is the call site.
	Pos *HookPos

	// Item is the subject of the hook, usually a *gs.Transaction.
	Item any

	// Detail is optional extra data. May be nil.
	Detail any
}

// Hookable is an object that hooks can be attached to.
type Hookable interface {
	// AcceptHook attaches a hook. Hooks are attached before the domain starts
	// running and are never detached.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks attached.
	NumHooks() int

	// InvokeHook calls all attached hooks in attachment order.
	InvokeHook(ctx HookCtx)
}

// Hook is invoked by a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase implements the bookkeeping part of Hookable. Embed it.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase creates an empty HookableBase.
func NewHookableBase() *HookableBase {
	return &HookableBase{hooks: make([]Hook, 0)}
}

// AcceptHook attaches a hook. Attaching the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, existing := range h.hooks {
		if isSameHook(existing, hook) {
			log.Panic("duplicated hook")
		}
	}

	h.hooks = append(h.hooks, hook)
}

func isSameHook(a, b Hook) (same bool) {
	defer func() {
		// HookFunc values are not comparable.
		if recover() != nil {
			same = false
		}
	}()

	return a == b
}

// NumHooks returns the number of hooks attached.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// InvokeHook calls every attached hook.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
