package system

import (
	"bytes"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/busim/bus"
	"github.com/sarchlab/busim/config"
	"github.com/sarchlab/busim/timing"
	"github.com/sarchlab/busim/tracing"
)

func twoDeviceConfig() config.Config {
	cfg := config.Defaults()
	cfg.Devices = []config.Device{
		{Name: "rom", Start: 0, Size: 2, Capacity: 8, Latency: 1, ByteOrder: "big"},
		{Name: "ram", Start: 4, Size: 2, Capacity: 8, Latency: 3, ByteOrder: "little"},
	}

	return cfg
}

var _ = Describe("System", func() {
	var s *System

	BeforeEach(func() {
		var err error
		s, err = Build(config.Defaults(), nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should wire one memory per device", func() {
		Expect(s.Memories()).To(HaveLen(1))
		Expect(s.Windows()).To(HaveLen(1))
		Expect(s.Bus().Devices()).To(Equal(s.Windows()))
		Expect(s.Clock().Devices()).To(HaveLen(1))

		m, found := s.Memory("ram")
		Expect(found).To(BeTrue())
		Expect(m.Latency()).To(Equal(2))

		_, found = s.Memory("nope")
		Expect(found).To(BeFalse())
	})

	It("should refuse an invalid config", func() {
		cfg := config.Defaults()
		cfg.Devices[0].Latency = -1

		_, err := Build(cfg, nil)

		var verr *config.ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
	})

	It("should write and read back through the bus", func() {
		ticks, err := s.Write(bus.Word(16), bus.Word(0xcafe))
		Expect(err).NotTo(HaveOccurred())
		Expect(ticks).To(Equal(3))

		v, ticks, err := s.Read(bus.Word(16), bus.WidthWord)
		Expect(err).NotTo(HaveOccurred())
		Expect(ticks).To(Equal(3))
		Expect(v).To(Equal(bus.Word(0xcafe)))

		avg, count := s.AverageLatency()
		Expect(count).To(Equal(uint64(2)))
		Expect(avg).To(BeNumerically("==", 2))
	})

	It("should report decoding failures without ticking", func() {
		_, ticks, err := s.Read(bus.Word(0x1000), bus.WidthWord)

		Expect(errors.Is(err, bus.ErrNoDevice)).To(BeTrue())
		Expect(ticks).To(Equal(0))
		Expect(s.Clock().CurrentTime()).To(Equal(timing.VTimeInCycle(0)))
	})

	It("should give up when the tick budget runs out", func() {
		cfg := config.Defaults()
		cfg.Clock.MaxTicksPerAccess = 2
		s, _ = Build(cfg, nil)

		_, err := s.Write(bus.Word(0), bus.Word(1))

		Expect(errors.Is(err, timing.ErrTickBudgetExhausted)).To(BeTrue())
		Expect(s.Bus().Busy()).To(BeTrue())
	})

	It("should keep devices apart", func() {
		var err error
		s, err = Build(twoDeviceConfig(), nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Write(bus.Word(5), bus.HalfWord(0x0102))
		Expect(err).NotTo(HaveOccurred())

		ram, _ := s.Memory("ram")
		v, _ := ram.Storage().Read16(1)
		Expect(v).To(Equal(uint16(0x0102)))

		_, err = s.Write(bus.Word(3), bus.Byte(1))
		Expect(errors.Is(err, bus.ErrNoDevice)).To(BeTrue())
	})

	It("should exercise every window", func() {
		cfg := config.Defaults()
		cfg.Devices = []config.Device{
			{Name: "rom", Start: 0, Size: 8, Capacity: 8, Latency: 1, ByteOrder: "big"},
			{Name: "ram", Start: 16, Size: 4, Capacity: 4, Latency: 0, ByteOrder: "little"},
		}
		s, err := Build(cfg, nil)
		Expect(err).NotTo(HaveOccurred())

		accesses, err := s.Exercise(4)

		Expect(err).NotTo(HaveOccurred())
		Expect(accesses).To(HaveLen(6))
		Expect(accesses[0]).To(Equal(Access{
			Device: "rom", Kind: "write", Address: 0,
			Data: Pattern(0) & 0xffffffff, Ticks: 2,
		}))
		Expect(accesses[3].Kind).To(Equal("read"))
		Expect(accesses[3].Data).To(Equal(Pattern(4) & 0xffffffff))
		Expect(accesses[4].Device).To(Equal("ram"))
		Expect(accesses[4].Ticks).To(Equal(1))
	})

	It("should log requests when asked to", func() {
		buf := new(bytes.Buffer)
		logger := logrus.New()
		logger.SetOutput(buf)
		logger.SetLevel(logrus.DebugLevel)

		cfg := config.Defaults()
		cfg.Trace.Log = true
		s, _ = Build(cfg, logger)

		_, err := s.Write(bus.Word(0), bus.Word(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("where=Bus"))
		Expect(buf.String()).To(ContainSubstring("where=ram"))
	})

	It("should record tasks through a trace writer", func() {
		w := tracing.NewMemoryTraceWriter()
		Expect(s.AttachTraceWriter(w)).To(Succeed())
		Expect(s.AttachTraceWriter(w)).NotTo(Succeed())

		_, err := s.Write(bus.Word(8), bus.Word(3))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		tasks := w.Tasks()
		Expect(tasks).To(HaveLen(2))
		Expect(tasks[0].Where).To(Equal("ram"))
		Expect(tasks[1].Where).To(Equal("Bus"))
	})

	It("should write to sqlite when configured", func() {
		cfg := config.Defaults()
		cfg.Trace.SQLite = filepath.Join(GinkgoT().TempDir(), "trace")
		s, err := Build(cfg, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Write(bus.Word(0), bus.Word(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())
		Expect(filepath.Join(filepath.Dir(cfg.Trace.SQLite), "trace.sqlite3")).
			To(BeAnExistingFile())
	})

	It("should describe the address map", func() {
		Expect(s.AddressMap()).To(ConsistOf(ContainSubstring("ram")))
	})
})
