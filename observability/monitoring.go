package observability

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the last sample of the server process.
type ProcessStats struct {
	Pid        int32     `json:"pid"`
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	Goroutines int       `json:"goroutines"`
	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	SampledAt  time.Time `json:"sampled_at"`
}

// RuntimeStats aggregates counters for the admin runtime endpoint.
type RuntimeStats struct {
	OnlineUsers        int          `json:"online_users"`
	LiveConnections    int          `json:"live_connections"`
	EventsDelivered    uint64       `json:"events_delivered"`
	EventsDropped      uint64       `json:"events_dropped"`
	MessagesPersisted  uint64       `json:"messages_persisted"`
	PersistenceFailure uint64       `json:"persistence_failures"`
	ConnectionsOpened  uint64       `json:"connections_opened"`
	ConnectionsClosed  uint64       `json:"connections_closed"`
	HandshakeRejected  uint64       `json:"handshakes_rejected"`
	WorkerRestarts     uint64       `json:"worker_restarts"`
	Process            ProcessStats `json:"process"`
}

// Metrics holds process-wide counters. The zero value is not usable, use
// NewMetrics.
type Metrics struct {
	eventsDelivered    atomic.Uint64
	eventsDropped      atomic.Uint64
	messagesPersisted  atomic.Uint64
	persistenceFailure atomic.Uint64
	connectionsOpened  atomic.Uint64
	connectionsClosed  atomic.Uint64
	handshakeRejected  atomic.Uint64
	workerRestarts     atomic.Uint64

	mu      sync.RWMutex
	process ProcessStats
	proc    *process.Process
}

func NewMetrics() *Metrics {
	m := &Metrics{}
	// A nil proc only disables the RSS and CPU part of the sample.
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = p
	}
	return m
}

func (m *Metrics) AddDelivered(n int) { m.eventsDelivered.Add(uint64(n)) }

func (m *Metrics) AddDropped(n int) { m.eventsDropped.Add(uint64(n)) }

func (m *Metrics) IncrPersisted() { m.messagesPersisted.Add(1) }

// IncrPersistenceFailure counts a message seen live but never stored.
func (m *Metrics) IncrPersistenceFailure() { m.persistenceFailure.Add(1) }

func (m *Metrics) IncrConnectionOpened() { m.connectionsOpened.Add(1) }

func (m *Metrics) IncrConnectionClosed() { m.connectionsClosed.Add(1) }

func (m *Metrics) IncrHandshakeRejected() { m.handshakeRejected.Add(1) }

func (m *Metrics) IncrWorkerRestart() { m.workerRestarts.Add(1) }

// Sample refreshes the process statistics.
func (m *Metrics) Sample() error {
	stats := ProcessStats{
		Pid:        int32(os.Getpid()),
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().UTC(),
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.AllocMemMb = ms.Alloc / 1024 / 1024
	stats.NumGC = ms.NumGC

	if m.proc != nil {
		memInfo, err := m.proc.MemoryInfo()
		if err != nil {
			return err
		}
		stats.RSSBytes = memInfo.RSS
		cpu, err := m.proc.CPUPercent()
		if err != nil {
			return err
		}
		stats.CPUPercent = cpu
	}

	m.mu.Lock()
	m.process = stats
	m.mu.Unlock()
	return nil
}

// Snapshot returns the counters; online and live come from the registry.
func (m *Metrics) Snapshot(online, live int) RuntimeStats {
	m.mu.RLock()
	proc := m.process
	m.mu.RUnlock()
	return RuntimeStats{
		OnlineUsers:        online,
		LiveConnections:    live,
		EventsDelivered:    m.eventsDelivered.Load(),
		EventsDropped:      m.eventsDropped.Load(),
		MessagesPersisted:  m.messagesPersisted.Load(),
		PersistenceFailure: m.persistenceFailure.Load(),
		ConnectionsOpened:  m.connectionsOpened.Load(),
		ConnectionsClosed:  m.connectionsClosed.Load(),
		HandshakeRejected:  m.handshakeRejected.Load(),
		WorkerRestarts:     m.workerRestarts.Load(),
		Process:            proc,
	}
}
