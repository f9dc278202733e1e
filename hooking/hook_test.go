package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHook struct {
	calls []HookCtx
}

func (h *recordingHook) Func(ctx HookCtx) {
	h.calls = append(h.calls, ctx)
}

var (
	posA = &HookPos{Name: "A"}
	posB = &HookPos{Name: "B"}
)

var _ = Describe("HookableBase", func() {
	var domain *HookableBase

	BeforeEach(func() {
		domain = NewHookableBase()
	})

	It("should start without hooks", func() {
		Expect(domain.NumHooks()).To(Equal(0))

		domain.InvokeHook(HookCtx{Domain: domain, Pos: posA})
	})

	It("should pass the context to every hook in order", func() {
		var order []string

		first := HookFunc(func(HookCtx) { order = append(order, "first") })
		second := &recordingHook{}
		third := HookFunc(func(HookCtx) { order = append(order, "third") })

		domain.AcceptHook(first)
		domain.AcceptHook(second)
		domain.AcceptHook(third)

		ctx := HookCtx{Domain: domain, Pos: posB, Item: 42, Detail: "x"}
		domain.InvokeHook(ctx)

		Expect(domain.NumHooks()).To(Equal(3))
		Expect(order).To(Equal([]string{"first", "third"}))
		Expect(second.calls).To(HaveLen(1))
		Expect(second.calls[0].Domain).To(BeIdenticalTo(domain))
		Expect(second.calls[0].Pos).To(BeIdenticalTo(posB))
		Expect(second.calls[0].Item).To(Equal(42))
		Expect(second.calls[0].Detail).To(Equal("x"))
	})

	It("should panic when the same hook is attached twice", func() {
		hook := &recordingHook{}
		domain.AcceptHook(hook)

		Expect(func() { domain.AcceptHook(hook) }).To(Panic())
	})

	It("should accept distinct hooks of the same type", func() {
		domain.AcceptHook(&recordingHook{})
		domain.AcceptHook(&recordingHook{})

		Expect(domain.NumHooks()).To(Equal(2))
	})
})
