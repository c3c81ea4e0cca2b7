package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/busim/bus"
	"github.com/sarchlab/busim/config"
	"github.com/sarchlab/busim/system"
)

var _ = Describe("Monitor", func() {
	var (
		sys    *system.System
		m      *Monitor
		server *httptest.Server
	)

	get := func(path string) (int, string) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, string(body)
	}

	BeforeEach(func() {
		var err error
		sys, err = system.Build(config.Defaults(), nil)
		Expect(err).NotTo(HaveOccurred())

		logger, _ := test.NewNullLogger()
		m = NewMonitor().WithLogger(logger)
		m.RegisterClock(sys.Clock())
		m.RegisterBus(sys.Bus())
		for _, mem := range sys.Memories() {
			m.RegisterComponent(mem)
		}

		server = httptest.NewServer(m.Handler())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should report the current cycle", func() {
		code, body := get("/api/now")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"now":0}`))
	})

	It("should tick the clock", func() {
		rsp, err := http.Post(server.URL+"/api/tick/3", "", nil)
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		Expect(sys.Clock().CurrentTime()).To(BeEquivalentTo(3))

		_, body := get("/api/tick/2")
		Expect(body).To(MatchJSON(`{"now":5}`))
	})

	It("should refuse a malformed tick count", func() {
		code, _ := get("/api/tick/many")

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should list components", func() {
		_, body := get("/api/list_components")

		Expect(body).To(MatchJSON(`["Bus","ram"]`))
	})

	It("should serialize a component", func() {
		code, body := get("/api/component/ram")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).NotTo(BeEmpty())
	})

	It("should return 404 for unknown components", func() {
		code, body := get("/api/component/rom")

		Expect(code).To(Equal(http.StatusNotFound))
		Expect(body).To(Equal("Component not found"))
	})

	It("should describe the bus", func() {
		_, body := get("/api/bus")
		Expect(body).To(MatchJSON(`{
			"name": "Bus",
			"state": "idle",
			"windows": [{"start": 0, "end": 4096, "device": "ram"}]
		}`))

		m.Do(func() {
			sys.Bus().Write(bus.Word(0), bus.Word(1))
			sys.Clock().Tick()
		})

		_, body = get("/api/bus")
		Expect(body).To(ContainSubstring(`"state":"in-flight"`))
	})

	It("should report progress bars", func() {
		bar := m.CreateProgressBar("round trip", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		_, body := get("/api/progress")
		var bars []ProgressBarSnapshot
		Expect(json.Unmarshal([]byte(body), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("round trip"))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		_, body = get("/api/progress")
		Expect(body).To(MatchJSON(`[]`))
	})

	It("should report resource usage", func() {
		code, body := get("/api/resource")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("cpu_percent"))
		Expect(body).To(ContainSubstring("memory_size"))
	})

	It("should collect a profile", func() {
		code, _ := get("/api/profile?seconds=0")

		Expect(code).To(Equal(http.StatusOK))
	})

	It("should serve the page", func() {
		code, body := get("/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("busim monitor"))
	})

	It("should replace reserved port numbers", func() {
		logger, hook := test.NewNullLogger()
		m = NewMonitor().WithLogger(logger).WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))
		Expect(hook.LastEntry().Level).To(Equal(logrus.WarnLevel))
	})

	It("should start and stop a server", func() {
		port, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(port).To(BeNumerically(">", 0))

		done := make(chan error, 1)
		go func() { done <- m.Serve() }()

		Expect(m.Shutdown(context.Background())).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})
})
