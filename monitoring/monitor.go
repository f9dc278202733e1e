// Package monitoring serves the state of a running replay over HTTP. It can
// pause and continue the driver at frame boundaries, report progress, and
// sample the process for profiling runs.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/gsreplay/replay"
)

// A Replayer is the part of a replay driver that the monitor controls.
type Replayer interface {
	State() replay.State
	Stats() replay.Stats
	Position() int
	Pause()
	Continue()
	IsPaused() bool
}

var _ Replayer = (*replay.Driver)(nil)

// Monitor turns a replay into a server that can be inspected and controlled
// from outside.
type Monitor struct {
	portNumber      int
	profileDuration time.Duration

	lock        sync.Mutex
	driver      Replayer
	objects     map[string]any
	progressBar []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
		objects:         make(map[string]any),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// refused and a random port is used instead.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterDriver sets the driver controlled by the monitor.
func (m *Monitor) RegisterDriver(d Replayer) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.driver = d
}

// RegisterObject makes v inspectable under name.
func (m *Monitor) RegisterObject(name string, v any) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.objects[name] = v
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.progressBar = append(m.progressBar, bar)

	return bar
}

// CompleteProgressBar removes a bar.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.lock.Lock()
	defer m.lock.Unlock()

	bars := make([]*ProgressBar, 0, len(m.progressBar))
	for _, b := range m.progressBar {
		if b != pb {
			bars = append(bars, b)
		}
	}

	m.progressBar = bars
}

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/api/continue", m.cont).Methods(http.MethodPost, http.MethodGet)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/objects", m.listObjects)
	r.HandleFunc("/api/object/{name}", m.objectDetails)
	r.HandleFunc("/api/field/{json}", m.fieldValue)

	return r
}

// StartServer starts serving in the background and returns the URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring replay with %s\n", url)

	go func() {
		err := http.Serve(listener, m.Handler())
		if err != nil {
			log.Printf("monitor stopped: %v", err)
		}
	}()

	return url, nil
}

func (m *Monitor) driverOr503(w http.ResponseWriter) Replayer {
	m.lock.Lock()
	d := m.driver
	m.lock.Unlock()

	if d == nil {
		http.Error(w, "no replay registered", http.StatusServiceUnavailable)
	}

	return d
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	d := m.driverOr503(w)
	if d == nil {
		return
	}

	d.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) cont(w http.ResponseWriter, _ *http.Request) {
	d := m.driverOr503(w)
	if d == nil {
		return
	}

	d.Continue()
	w.WriteHeader(http.StatusOK)
}

type statusRsp struct {
	State         string  `json:"state"`
	Paused        bool    `json:"paused"`
	Position      int     `json:"position"`
	Passes        uint64  `json:"passes"`
	Frames        uint64  `json:"frames"`
	Transactions  uint64  `json:"transactions"`
	TransferBytes uint64  `json:"transfer_bytes"`
	FIFOBytes     uint64  `json:"fifo_bytes"`
	RegisterBytes uint64  `json:"register_bytes"`
	FPS           float64 `json:"fps"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	d := m.driverOr503(w)
	if d == nil {
		return
	}

	stats := d.Stats()

	writeJSON(w, statusRsp{
		State:         d.State().String(),
		Paused:        d.IsPaused(),
		Position:      d.Position(),
		Passes:        stats.Passes,
		Frames:        stats.Frames,
		Transactions:  stats.Transactions,
		TransferBytes: stats.TransferBytes,
		FIFOBytes:     stats.FIFOBytes,
		RegisterBytes: stats.RegisterBytes,
		FPS:           stats.FPS(),
	})
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBar))
	for _, b := range m.progressBar {
		bars = append(bars, b.snapshot())
	}
	m.lock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func (m *Monitor) listObjects(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	m.lock.Unlock()

	sort.Strings(names)

	writeJSON(w, names)
}

func (m *Monitor) objectOr404(w http.ResponseWriter, name string) any {
	m.lock.Lock()
	obj, ok := m.objects[name]
	m.lock.Unlock()

	if !ok {
		http.Error(w, "Object not found", http.StatusNotFound)
		return nil
	}

	return obj
}

func (m *Monitor) objectDetails(w http.ResponseWriter, r *http.Request) {
	obj := m.objectOr404(w, mux.Vars(r)["name"])
	if obj == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(obj)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		log.Printf("serialize %s: %v", mux.Vars(r)["name"], err)
	}
}

type fieldReq struct {
	ObjectName string `json:"object_name,omitempty"`
	FieldName  string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	if err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	obj := m.objectOr404(w, req.ObjectName)
	if obj == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(obj)
	serializer.SetMaxDepth(1)

	err := serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := serializer.Serialize(w); err != nil {
		log.Printf("serialize %s: %v", req.FieldName, err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(data); err != nil {
		log.Printf("monitor write: %v", err)
	}
}
