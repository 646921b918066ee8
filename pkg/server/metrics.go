package server

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crystal-mush/mushchat/pkg/events"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// ChatStats is a point-in-time count of chat state, gathered under the
// server lock.
type ChatStats struct {
	Channels    int
	Memberships int
	Sessions    int
	Objects     int
}

// Metrics holds Prometheus metric descriptors for the chat service. It is
// also a global bus subscriber counting lines and deliveries.
type Metrics struct {
	stats     func() ChatStats
	startTime time.Time
	registry  *prometheus.Registry

	channelsTotal    prometheus.Gauge
	membershipsTotal prometheus.Gauge
	sessions         prometheus.Gauge
	objectsTotal     prometheus.Gauge
	linesTotal       *prometheus.CounterVec
	deliveriesTotal  *prometheus.CounterVec
	commandsTotal    prometheus.Counter
	savesTotal       *prometheus.CounterVec
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge

	mu     sync.Mutex
	closed bool
}

// NewMetrics creates and registers the chat metrics on their own registry.
func NewMetrics(stats func() ChatStats, startTime time.Time) *Metrics {
	m := &Metrics{
		stats:     stats,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		channelsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mushchat_channels",
			Help: "Number of channels in the directory.",
		}),
		membershipsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mushchat_memberships",
			Help: "Total channel memberships across all channels.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mushchat_sessions",
			Help: "Number of open sessions.",
		}),
		objectsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mushchat_objects",
			Help: "Total number of objects in the world.",
		}),
		linesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mushchat_lines_total",
			Help: "Channel lines broadcast, by kind.",
		}, []string{"kind"}),
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mushchat_deliveries_total",
			Help: "Messages delivered to players, by event type.",
		}, []string{"type"}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mushchat_commands_processed_total",
			Help: "Total commands processed since start.",
		}),
		savesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mushchat_saves_total",
			Help: "Snapshot saves, by result.",
		}, []string{"result"}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mushchat_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mushchat_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mushchat_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.channelsTotal,
		m.membershipsTotal,
		m.sessions,
		m.objectsTotal,
		m.linesTotal,
		m.deliveriesTotal,
		m.commandsTotal,
		m.savesTotal,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)
	return m
}

// Update refreshes all gauge metrics from current chat state.
func (m *Metrics) Update() {
	st := m.stats()
	m.channelsTotal.Set(float64(st.Channels))
	m.membershipsTotal.Set(float64(st.Memberships))
	m.sessions.Set(float64(st.Sessions))
	m.objectsTotal.Set(float64(st.Objects))

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// CommandProcessed counts one dispatched command.
func (m *Metrics) CommandProcessed() { m.commandsTotal.Inc() }

// SaveDone counts one snapshot save.
func (m *Metrics) SaveDone(err error) {
	if err != nil {
		m.savesTotal.WithLabelValues("error").Inc()
		return
	}
	m.savesTotal.WithLabelValues("ok").Inc()
}

// Receive implements events.Subscriber. Channel-level records count as
// lines, everything addressed to a player as a delivery.
func (m *Metrics) Receive(ev events.Event) {
	if ev.Player == gamedb.Nothing {
		if ev.Type == events.EvChannel || ev.Type == events.EvPresence {
			m.linesTotal.WithLabelValues(ev.Type.String()).Inc()
		}
		return
	}
	m.deliveriesTotal.WithLabelValues(ev.Type.String()).Inc()
}

// Closed implements events.Subscriber.
func (m *Metrics) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close detaches the metrics from the bus.
func (m *Metrics) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		h.ServeHTTP(w, r)
	})
}
