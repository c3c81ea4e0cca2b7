// Package monitoring turns a running system into a web server that can be
// inspected and ticked from a browser.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/busim/bus"
	"github.com/sarchlab/busim/monitoring/web"
	"github.com/sarchlab/busim/timing"
)

// Component is anything the monitor can list and serialize.
type Component interface {
	Name() string
}

// Monitor can turn a simulation into a server and allows external monitoring
// and ticking of the simulation. Every request that touches the simulation
// holds the monitor lock, so ticks it triggers never interleave with ticks
// run through Do.
type Monitor struct {
	lock       sync.Mutex
	clock      *timing.Clock
	bus        *bus.Bus
	components []Component
	portNumber int
	logger     logrus.FieldLogger

	server   *http.Server
	listener net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger: logrus.StandardLogger(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warnf("Port number %d is assigned to the monitoring server, "+
			"which is not allowed. Using a random port instead.", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger the monitor reports to.
func (m *Monitor) WithLogger(logger logrus.FieldLogger) *Monitor {
	m.logger = logger
	return m
}

// RegisterClock registers the clock that drives the simulation.
func (m *Monitor) RegisterClock(c *timing.Clock) {
	m.clock = c
}

// RegisterBus registers the bus. The bus is also listed as a component.
func (m *Monitor) RegisterBus(b *bus.Bus) {
	m.bus = b
	m.RegisterComponent(b)
}

// RegisterComponent register a component to be monitored.
func (m *Monitor) RegisterComponent(c Component) {
	m.components = append(m.components, c)
}

// Do runs f while holding the monitor lock. Code that ticks the clock while
// the server is up must go through Do.
func (m *Monitor) Do(f func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	f()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router that serves the monitor API and pages.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/tick/{n}", m.tick).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/bus", m.busState)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the port it
// listens on.
func (m *Monitor) StartServer() (int, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return 0, errors.Wrap(err, "starting monitor")
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	port := listener.Addr().(*net.TCPAddr).Port
	m.logger.Infof("Monitoring simulation with http://localhost:%d", port)

	return port, nil
}

// Serve blocks serving requests until Shutdown is called.
func (m *Monitor) Serve() error {
	if m.server == nil {
		return errors.New("monitor server is not started")
	}

	err := m.server.Serve(m.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type nowRsp struct {
	Now uint64 `json:"now"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	now := m.clock.CurrentTime()
	m.lock.Unlock()

	m.writeJSON(w, nowRsp{Now: uint64(now)})
}

func (m *Monitor) tick(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil || n < 0 {
		http.Error(w, "tick count must be a non-negative integer",
			http.StatusBadRequest)
		return
	}

	m.lock.Lock()
	m.clock.TickN(n)
	now := m.clock.CurrentTime()
	m.lock.Unlock()

	m.writeJSON(w, nowRsp{Now: uint64(now)})
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	m.writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	m.logOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.logOnErr(serializer.Serialize(w))
}

type windowRsp struct {
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
	Device string `json:"device"`
}

type busRsp struct {
	Name    string      `json:"name"`
	State   string      `json:"state"`
	Windows []windowRsp `json:"windows"`
}

func (m *Monitor) busState(w http.ResponseWriter, _ *http.Request) {
	if m.bus == nil {
		http.Error(w, "no bus registered", http.StatusNotFound)
		return
	}

	m.lock.Lock()
	rsp := busRsp{
		Name:    m.bus.Name(),
		State:   m.bus.State().String(),
		Windows: []windowRsp{},
	}

	for _, d := range m.bus.Devices() {
		window := windowRsp{Start: d.Start(), End: d.End()}
		if named, ok := d.Device().(Component); ok {
			window.Device = named.Name()
		}

		rsp.Windows = append(rsp.Windows, window)
	}
	m.lock.Unlock()

	m.writeJSON(w, rsp)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	m.logOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]ProgressBarSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Snapshot())
	}

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := process.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memorySize, err := process.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		d, err := time.ParseDuration(s + "s")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		duration = d
	}

	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	m.logOnErr(err)
}

func (m *Monitor) logOnErr(err error) {
	if err != nil {
		m.logger.WithError(err).Warn("monitor response failed")
	}
}

// URL returns the address of the monitor page for a port.
func URL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}
