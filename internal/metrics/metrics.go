// Package metrics accumulates the load figures a worker reports to the
// autoscaler.
package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AutoscalerData is the report sent to, or polled by, the autoscaler.
type AutoscalerData struct {
	ID                  string  `json:"id"`
	URL                 string  `json:"url"`
	LoadTime            float64 `json:"loadtime"`
	CurLoad             float64 `json:"cur_load"`
	MaxPerf             float64 `json:"max_perf"`
	CurPerf             float64 `json:"cur_perf"`
	ErrorMsg            string  `json:"error_msg"`
	NumRequestsWorking  int     `json:"num_requests_working"`
	NumRequestsReceived int     `json:"num_requests_received"`
}

// Monitor is safe for concurrent use by request handlers.
type Monitor struct {
	id  string
	url string
	now func() time.Time

	mu              sync.Mutex
	windowStart     time.Time
	received        int
	working         int
	workloadPending float64
	workloadDone    float64
	maxPerf         float64
	loadTime        time.Duration
	errorMsg        string
}

// New creates a monitor with a fresh worker id.
func New(url string) *Monitor {
	m := &Monitor{
		id:  uuid.NewString(),
		url: url,
		now: time.Now,
	}
	m.windowStart = m.now()
	return m
}

func (m *Monitor) ID() string { return m.id }

func (m *Monitor) URL() string { return m.url }

// Begin records an accepted request carrying workload and returns the
// function to call once the backend answered.
func (m *Monitor) Begin(workload float64) func(success bool) {
	m.mu.Lock()
	m.received++
	m.working++
	m.workloadPending += workload
	m.mu.Unlock()

	var once sync.Once
	return func(success bool) {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.working--
			m.workloadPending -= workload
			if success {
				m.workloadDone += workload
			}
		})
	}
}

// SetMaxThroughput stores the benchmarked capacity in workload per second.
func (m *Monitor) SetMaxThroughput(perf float64) {
	m.mu.Lock()
	m.maxPerf = perf
	m.mu.Unlock()
}

func (m *Monitor) SetLoadTime(d time.Duration) {
	m.mu.Lock()
	m.loadTime = d
	m.mu.Unlock()
}

// SetError records a model error; an empty message clears it.
func (m *Monitor) SetError(msg string) {
	m.mu.Lock()
	m.errorMsg = msg
	m.mu.Unlock()
}

// Snapshot reports the current window and starts a new one.
func (m *Monitor) Snapshot() AutoscalerData {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	elapsed := now.Sub(m.windowStart).Seconds()
	data := AutoscalerData{
		ID:                  m.id,
		URL:                 m.url,
		LoadTime:            m.loadTime.Seconds(),
		MaxPerf:             m.maxPerf,
		ErrorMsg:            m.errorMsg,
		NumRequestsWorking:  m.working,
		NumRequestsReceived: m.received,
	}
	if elapsed > 0 {
		data.CurLoad = (m.workloadPending + m.workloadDone) / elapsed
		data.CurPerf = m.workloadDone / elapsed
	}

	m.windowStart = now
	m.received = 0
	m.workloadDone = 0
	return data
}
