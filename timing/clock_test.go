package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/busim/hooking"
)

type phaseRecorder struct {
	name  string
	calls *[]string
}

func (r *phaseRecorder) Activate()   { *r.calls = append(*r.calls, r.name+":activate") }
func (r *phaseRecorder) Settle()     { *r.calls = append(*r.calls, r.name+":settle") }
func (r *phaseRecorder) Deactivate() { *r.calls = append(*r.calls, r.name+":deactivate") }

var _ = Describe("Clock", func() {
	var (
		mockCtrl *gomock.Controller
		dev1     *MockDiscrete
		dev2     *MockDiscrete
		clock    *Clock
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		dev1 = NewMockDiscrete(mockCtrl)
		dev2 = NewMockDiscrete(mockCtrl)
		clock = NewClock(dev1, dev2)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should activate all devices, then settle, then deactivate", func() {
		gomock.InOrder(
			dev1.EXPECT().Activate(),
			dev2.EXPECT().Activate(),
			dev1.EXPECT().Settle(),
			dev2.EXPECT().Settle(),
			dev1.EXPECT().Deactivate(),
			dev2.EXPECT().Deactivate(),
		)

		clock.Tick()

		Expect(clock.CurrentTime()).To(Equal(VTimeInCycle(1)))
	})

	It("should keep phases separated across several ticks", func() {
		var calls []string
		a := &phaseRecorder{name: "A", calls: &calls}
		b := &phaseRecorder{name: "B", calls: &calls}
		c := NewClock(a, b)

		c.TickN(2)

		oneTick := []string{
			"A:activate", "B:activate",
			"A:settle", "B:settle",
			"A:deactivate", "B:deactivate",
		}
		Expect(calls).To(Equal(append(append([]string{}, oneTick...), oneTick...)))
		Expect(c.CurrentTime()).To(Equal(VTimeInCycle(2)))
	})

	It("should invoke tick hooks with the cycle number", func() {
		dev1.EXPECT().Activate()
		dev2.EXPECT().Activate()
		dev1.EXPECT().Settle()
		dev2.EXPECT().Settle()
		dev1.EXPECT().Deactivate()
		dev2.EXPECT().Deactivate()

		var seen []string
		var cycles []VTimeInCycle
		clock.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			seen = append(seen, ctx.Pos.Name)
			cycles = append(cycles, ctx.Item.(VTimeInCycle))
		}))

		clock.Tick()

		Expect(seen).To(Equal([]string{"BeforeTick", "AfterTick"}))
		Expect(cycles).To(Equal([]VTimeInCycle{1, 1}))
	})

	It("should refuse nil devices", func() {
		Expect(func() { clock.Register(nil) }).To(Panic())
	})

	Context("when running until a condition holds", func() {
		var calls []string

		BeforeEach(func() {
			calls = nil
			clock = NewClock(&phaseRecorder{name: "A", calls: &calls})
		})

		It("should stop as soon as the condition holds", func() {
			n, err := clock.RunUntil(func() bool {
				return clock.CurrentTime() == 3
			}, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
			Expect(calls).To(HaveLen(9))
		})

		It("should not tick when the condition already holds", func() {
			n, err := clock.RunUntil(func() bool { return true }, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))
			Expect(calls).To(BeEmpty())
		})

		It("should report an exhausted budget", func() {
			n, err := clock.RunUntil(func() bool { return false }, 4)

			Expect(errors.Is(err, ErrTickBudgetExhausted)).To(BeTrue())
			Expect(n).To(Equal(4))
			Expect(clock.CurrentTime()).To(Equal(VTimeInCycle(4)))
		})
	})
})
