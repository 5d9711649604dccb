package observability

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats aggregates runtime counters and process self stats for the
// health endpoint.
type Stats struct {
	UptimeSeconds     int64   `json:"uptime_seconds"`
	ConnectionsOpened uint64  `json:"connections_opened"`
	ConnectionsClosed uint64  `json:"connections_closed"`
	MessagesLedgered  uint64  `json:"messages_ledgered"`
	ErrorsReported    uint64  `json:"errors_reported"`
	RAMBytes          uint64  `json:"ram_bytes"`
	CPUPercent        float64 `json:"cpu_percent"`
}

// Monitor collects coordinator-wide counters. Counters are atomic so the
// hot paths never take a lock for bookkeeping.
type Monitor struct {
	log       *slog.Logger
	startedAt time.Time
	proc      *process.Process

	connectionsOpened atomic.Uint64
	connectionsClosed atomic.Uint64
	messagesLedgered  atomic.Uint64
	errorsReported    atomic.Uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Self process handle unavailable, health stats will be partial", "error", err)
	}
	return &Monitor{log: log, startedAt: time.Now(), proc: p}
}

func (m *Monitor) ConnectionOpened() { m.connectionsOpened.Add(1) }
func (m *Monitor) ConnectionClosed() { m.connectionsClosed.Add(1) }
func (m *Monitor) MessageLedgered()  { m.messagesLedgered.Add(1) }
func (m *Monitor) ErrorReported()    { m.errorsReported.Add(1) }

// Snapshot returns the latest counters plus memory and CPU usage of the
// running process.
func (m *Monitor) Snapshot() Stats {
	stats := Stats{
		UptimeSeconds:     int64(time.Since(m.startedAt).Seconds()),
		ConnectionsOpened: m.connectionsOpened.Load(),
		ConnectionsClosed: m.connectionsClosed.Load(),
		MessagesLedgered:  m.messagesLedgered.Load(),
		ErrorsReported:    m.errorsReported.Load(),
	}

	if m.proc == nil {
		return stats
	}
	if memInfo, err := m.proc.MemoryInfo(); err == nil {
		stats.RAMBytes = memInfo.RSS
	}
	if cpuPercent, err := m.proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpuPercent
	}
	return stats
}
