// Package metrics records lifecycle and performance measurements: Prometheus
// collectors for scraping, plus a small in-process summary served by the
// performance API.
package metrics

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ward"

// Recorder collects configuration lifecycle metrics. A nil *Recorder is valid
// and records nothing, so components can take one unconditionally.
type Recorder struct {
	reloads    *prometheus.CounterVec
	restarts   *prometheus.CounterVec
	setups     *prometheus.CounterVec
	configured prometheus.Gauge
	startup    prometheus.Gauge

	mu            sync.Mutex
	startedAt     time.Time
	readyAt       time.Time
	startupMemory uint64
	custom        map[string]time.Duration
}

// NewRecorder constructs a Recorder and registers its collectors with reg.
// A nil reg selects prometheus.DefaultRegisterer. Registration errors panic,
// mirroring promauto.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Reloads of the persisted setup into the active configuration.",
		}, []string{"result"}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Listener restarts, by reason.",
		}, []string{"reason"}),
		setups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_submissions_total",
			Help:      "Setup submissions, by result.",
		}, []string{"result"}),
		configured: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "configured",
			Help:      "1 when the application is configured, 0 otherwise.",
		}),
		startup: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "startup_seconds",
			Help:      "Time from process start until the first listener was serving.",
		}),
		custom: make(map[string]time.Duration),
	}
	reg.MustRegister(r.reloads, r.restarts, r.setups, r.configured, r.startup)
	return r
}

// RecordStart marks the process start and samples heap usage.
func (r *Recorder) RecordStart(t time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.startedAt = t
	r.startupMemory = heapInUse()
	r.mu.Unlock()
}

// RecordReady marks the moment the first listener started serving. Later
// calls are ignored so restarts do not move the startup figure.
func (r *Recorder) RecordReady(t time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.readyAt.IsZero() {
		return
	}
	r.readyAt = t
	if !r.startedAt.IsZero() {
		r.startup.Set(t.Sub(r.startedAt).Seconds())
	}
}

// ObserveReload counts a reload attempt.
func (r *Recorder) ObserveReload(err error) {
	if r == nil {
		return
	}
	r.reloads.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveRestart counts a restart carried out by the coordinator.
func (r *Recorder) ObserveRestart(reason string) {
	if r == nil {
		return
	}
	r.restarts.WithLabelValues(reason).Inc()
}

// ObserveSetup counts a setup submission. The setup service labels results
// "saved", "rejected", "invalid" or "failed".
func (r *Recorder) ObserveSetup(result string) {
	if r == nil {
		return
	}
	r.setups.WithLabelValues(result).Inc()
}

// SetConfigured mirrors the setup state into the configured gauge.
func (r *Recorder) SetConfigured(configured bool) {
	if r == nil {
		return
	}
	if configured {
		r.configured.Set(1)
	} else {
		r.configured.Set(0)
	}
}

// Measure runs fn and records its duration under name.
func (r *Recorder) Measure(name string, fn func()) {
	start := time.Now()
	defer func() {
		if r == nil {
			return
		}
		r.mu.Lock()
		r.custom[name] = time.Since(start)
		r.mu.Unlock()
	}()
	fn()
}

// StartupTime returns the time between RecordStart and RecordReady, or -1
// when either has not been recorded.
func (r *Recorder) StartupTime() time.Duration {
	if r == nil {
		return -1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startedAt.IsZero() || r.readyAt.IsZero() {
		return -1
	}
	return r.readyAt.Sub(r.startedAt)
}

// Timings returns every measured duration in milliseconds, including
// startup_time_ms once the process is ready.
func (r *Recorder) Timings() map[string]int64 {
	out := make(map[string]int64)
	if r == nil {
		return out
	}
	r.mu.Lock()
	for k, v := range r.custom {
		out[k] = v.Milliseconds()
	}
	r.mu.Unlock()
	if d := r.StartupTime(); d >= 0 {
		out["startup_time_ms"] = d.Milliseconds()
	}
	return out
}

// Memory is a snapshot of Go runtime memory usage in MiB.
type Memory struct {
	CurrentMB  uint64 `json:"currentMB"`
	StartupMB  uint64 `json:"startupMB"`
	IncreaseMB int64  `json:"increaseMB"`
	SystemMB   uint64 `json:"systemMB"`
	NumGC      uint32 `json:"numGC"`
}

// Memory returns current runtime memory figures.
func (r *Recorder) Memory() Memory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := Memory{
		CurrentMB: toMB(ms.HeapInuse),
		SystemMB:  toMB(ms.Sys),
		NumGC:     ms.NumGC,
	}
	if r != nil {
		r.mu.Lock()
		m.StartupMB = toMB(r.startupMemory)
		r.mu.Unlock()
	}
	m.IncreaseMB = int64(m.CurrentMB) - int64(m.StartupMB)
	return m
}

// FormattedStartupTime renders StartupTime for humans.
func (r *Recorder) FormattedStartupTime() string {
	d := r.StartupTime()
	switch {
	case d < 0:
		return "Startup time not available"
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2f seconds", d.Seconds())
	}
}

// Summary returns a one-line description of startup time and memory.
func (r *Recorder) Summary() string {
	m := r.Memory()
	return fmt.Sprintf("Ward started in %s, memory %d MB (startup %d MB, %+d MB)",
		r.FormattedStartupTime(), m.CurrentMB, m.StartupMB, m.IncreaseMB)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}

func toMB(b uint64) uint64 { return b / (1024 * 1024) }
