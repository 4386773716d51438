package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	positions []*HookPos
}

func (h *countingHook) Func(ctx HookCtx) {
	h.positions = append(h.positions, ctx.Pos)
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  = &HookPos{Name: "Test"}
	)

	BeforeEach(func() {
		base = NewHookableBase()
	})

	It("should invoke all the hooks in order", func() {
		h1 := &countingHook{}
		h2 := &countingHook{}
		base.AcceptHook(h1)
		base.AcceptHook(h2)

		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(base.Hooks()).To(Equal([]Hook{h1, h2}))
		Expect(h1.positions).To(ConsistOf(pos))
		Expect(h2.positions).To(ConsistOf(pos))
		Expect(pos.String()).To(Equal("Test"))
	})

	It("should panic when the same hook is registered twice", func() {
		h := &countingHook{}
		base.AcceptHook(h)

		Expect(func() { base.AcceptHook(h) }).To(Panic())
	})

	It("should stop invoking removed hooks", func() {
		h1 := &countingHook{}
		h2 := &countingHook{}
		h3 := &countingHook{}
		base.AcceptHook(h1)
		base.AcceptHook(h2)
		base.AcceptHook(h3)

		Expect(base.RemoveHook(h2)).To(BeTrue())
		Expect(base.RemoveHook(h2)).To(BeFalse())

		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(base.Hooks()).To(Equal([]Hook{h1, h3}))
		Expect(h1.positions).To(HaveLen(1))
		Expect(h2.positions).To(BeEmpty())
		Expect(h3.positions).To(HaveLen(1))
	})
})
