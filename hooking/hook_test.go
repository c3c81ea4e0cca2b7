package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewHookableBase()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke hooks in registration order", func() {
		pos := &HookPos{Name: "Test"}
		first := NewMockHook(mockCtrl)
		second := NewMockHook(mockCtrl)
		domain.AcceptHook(first)
		domain.AcceptHook(second)

		ctx := HookCtx{Domain: domain, Pos: pos, Item: 1}
		gomock.InOrder(
			first.EXPECT().Func(ctx),
			second.EXPECT().Func(ctx),
		)

		domain.InvokeHook(ctx)
		Expect(domain.NumHooks()).To(Equal(2))
	})

	It("should panic on duplicated hooks", func() {
		hook := NewMockHook(mockCtrl)
		domain.AcceptHook(hook)

		Expect(func() { domain.AcceptHook(hook) }).To(Panic())
	})

	It("should accept plain functions", func() {
		count := 0
		domain.AcceptHook(HookFunc(func(HookCtx) { count++ }))
		domain.AcceptHook(HookFunc(func(HookCtx) { count++ }))

		domain.InvokeHook(HookCtx{Domain: domain})

		Expect(count).To(Equal(2))
		Expect(domain.Hooks()).To(HaveLen(2))
	})
})
