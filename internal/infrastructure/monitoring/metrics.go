package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics (monitor API)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Syscall metrics
	SyscallsTotal     *prometheus.CounterVec
	SyscallDuration   *prometheus.HistogramVec
	SyscallsSuspended *prometheus.CounterVec
	FaultsTotal       prometheus.Counter

	// Scheduler metrics
	SchedSwitches prometheus.Counter
	SchedWakes    prometheus.Counter
	ProcsRunnable prometheus.Gauge
	ProcsBlocked  prometheus.Gauge
	ProcsTotal    prometheus.Gauge

	// IPC metrics
	MessagesSent     prometheus.Counter
	MailboxPosts     prometheus.Counter
	MailboxEvictions prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalSyscalls     int64
	TotalSuspensions  int64
	TotalFaults       int64
	TotalSwitches     int64
	ActiveConnections int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_http_requests_total",
				Help: "Total number of monitor API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_http_request_duration_seconds",
				Help:    "Monitor API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		SyscallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_syscalls_total",
				Help: "Total number of dispatched syscalls",
			},
			[]string{"op", "result"},
		),
		SyscallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kernel_syscall_duration_seconds",
				Help:    "Syscall dispatch duration in seconds",
				Buckets: []float64{.000001, .00001, .0001, .001, .01, .1},
			},
			[]string{"op"},
		),
		SyscallsSuspended: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_syscalls_suspended_total",
				Help: "Syscalls that suspended at least once",
			},
			[]string{"op"},
		),
		FaultsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_faults_total",
				Help: "User memory faults that terminated a process",
			},
		),

		SchedSwitches: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_sched_switches_total",
				Help: "Context switches performed",
			},
		),
		SchedWakes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_sched_wakes_total",
				Help: "Blocked-to-runnable transitions",
			},
		),
		ProcsRunnable: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_procs_runnable",
				Help: "Entities in the runnable set",
			},
		),
		ProcsBlocked: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_procs_blocked",
				Help: "Entities blocked on a waker",
			},
		),
		ProcsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_procs_total",
				Help: "Live schedulable entities",
			},
		),

		MessagesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_ipc_messages_total",
				Help: "Messages accepted by channel send",
			},
		),
		MailboxPosts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_mailbox_posts_total",
				Help: "Events posted to mailboxes",
			},
		),
		MailboxEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kernel_mailbox_evictions_total",
				Help: "Oldest-entry evictions on full mailboxes",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_ws_connections",
				Help: "Active event stream connections",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kernel_uptime_seconds",
				Help: "Seconds since boot",
			},
		),
	}

	go m.updateUptime()
	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records a monitor API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSyscall records a completed syscall dispatch
func (m *Metrics) RecordSyscall(op, result string, duration time.Duration) {
	m.SyscallsTotal.WithLabelValues(op, result).Inc()
	m.SyscallDuration.WithLabelValues(op).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalSyscalls++
	m.mu.Unlock()
}

// RecordSuspend records a syscall suspension
func (m *Metrics) RecordSuspend(op string) {
	m.SyscallsSuspended.WithLabelValues(op).Inc()

	m.mu.Lock()
	m.snapshot.TotalSuspensions++
	m.mu.Unlock()
}

// RecordFault records a fatal user memory fault
func (m *Metrics) RecordFault() {
	m.FaultsTotal.Inc()

	m.mu.Lock()
	m.snapshot.TotalFaults++
	m.mu.Unlock()
}

// RecordSwitch records a context switch
func (m *Metrics) RecordSwitch() {
	m.SchedSwitches.Inc()

	m.mu.Lock()
	m.snapshot.TotalSwitches++
	m.mu.Unlock()
}

// RecordWake records a blocked-to-runnable transition
func (m *Metrics) RecordWake() {
	m.SchedWakes.Inc()
}

// SetProcCounts updates the per-state population gauges
func (m *Metrics) SetProcCounts(runnable, blocked, total int) {
	m.ProcsRunnable.Set(float64(runnable))
	m.ProcsBlocked.Set(float64(blocked))
	m.ProcsTotal.Set(float64(total))
}

// RecordMessage records an accepted channel message
func (m *Metrics) RecordMessage() {
	m.MessagesSent.Inc()
}

// RecordPost records a mailbox event post
func (m *Metrics) RecordPost() {
	m.MailboxPosts.Inc()
}

// RecordEviction records a mailbox overflow eviction
func (m *Metrics) RecordEviction() {
	m.MailboxEvictions.Inc()
}

// WSConnect increments the event stream connection gauge
func (m *Metrics) WSConnect() {
	m.WSConnections.Inc()

	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// WSDisconnect decrements the event stream connection gauge
func (m *Metrics) WSDisconnect() {
	m.WSConnections.Dec()

	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// GetSnapshot returns current metric values for the JSON API
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
