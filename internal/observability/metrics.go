// Package observability provides metrics and tracing for SiteSmith.
package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics provides application metrics collection.
// It exposes Prometheus-compatible metrics at the /metrics endpoint.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	runsTotal     atomic.Int64
	runsSucceeded atomic.Int64
	runsFailed    atomic.Int64
	providerCalls map[string]*atomic.Int64
	providerErrs  map[string]*atomic.Int64

	// Gauges
	activeRuns atomic.Int64

	// Histograms (simplified - just track count and sum)
	runLatencyCount atomic.Int64
	runLatencySum   atomic.Int64

	// Info
	version   string
	startTime time.Time
}

// knownProviders lists provider adapters to pre-initialize metrics for,
// avoiding lock contention on the hot path during provider calls.
var knownProviders = []string{"hosting", "dns"}

// NewMetrics creates a new Metrics instance.
// Pre-initializes metrics for known providers to reduce lock contention.
func NewMetrics(version string) *Metrics {
	providerCalls := make(map[string]*atomic.Int64, len(knownProviders))
	providerErrs := make(map[string]*atomic.Int64, len(knownProviders))

	for _, p := range knownProviders {
		providerCalls[p] = &atomic.Int64{}
		providerErrs[p] = &atomic.Int64{}
	}

	return &Metrics{
		providerCalls: providerCalls,
		providerErrs:  providerErrs,
		version:       version,
		startTime:     time.Now(),
	}
}

// RecordRun records a finished provisioning run.
func (m *Metrics) RecordRun(success bool, duration time.Duration) {
	m.runsTotal.Add(1)
	if success {
		m.runsSucceeded.Add(1)
	} else {
		m.runsFailed.Add(1)
	}
	m.runLatencyCount.Add(1)
	m.runLatencySum.Add(duration.Milliseconds())
}

// RecordProviderCall records one outbound provider API call.
// Uses optimistic read lock for pre-initialized providers (hot path),
// falling back to write lock only for unknown providers.
func (m *Metrics) RecordProviderCall(provider string, success bool) {
	m.mu.RLock()
	calls := m.providerCalls[provider]
	errs := m.providerErrs[provider]
	m.mu.RUnlock()

	if calls == nil {
		m.mu.Lock()
		// Double-check after acquiring write lock
		if m.providerCalls[provider] == nil {
			m.providerCalls[provider] = &atomic.Int64{}
			m.providerErrs[provider] = &atomic.Int64{}
		}
		calls = m.providerCalls[provider]
		errs = m.providerErrs[provider]
		m.mu.Unlock()
	}

	calls.Add(1)
	if !success {
		errs.Add(1)
	}
}

// IncrementActiveRuns increments the in-flight run count.
func (m *Metrics) IncrementActiveRuns() {
	m.activeRuns.Add(1)
}

// DecrementActiveRuns decrements the in-flight run count.
func (m *Metrics) DecrementActiveRuns() {
	m.activeRuns.Add(-1)
}

// Handler returns an HTTP handler for the /metrics endpoint.
// The output is Prometheus-compatible text format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		// Build info
		sb.WriteString("# HELP sitesmith_info Build information\n")
		sb.WriteString("# TYPE sitesmith_info gauge\n")
		sb.WriteString(fmt.Sprintf("sitesmith_info{version=%q} 1\n\n", m.version))

		// Uptime
		uptime := time.Since(m.startTime).Seconds()
		sb.WriteString("# HELP sitesmith_uptime_seconds Uptime in seconds\n")
		sb.WriteString("# TYPE sitesmith_uptime_seconds gauge\n")
		sb.WriteString(fmt.Sprintf("sitesmith_uptime_seconds %.2f\n\n", uptime))

		// Run counters
		sb.WriteString("# HELP sitesmith_runs_total Total number of provisioning runs started\n")
		sb.WriteString("# TYPE sitesmith_runs_total counter\n")
		sb.WriteString(fmt.Sprintf("sitesmith_runs_total %d\n\n", m.runsTotal.Load()))

		sb.WriteString("# HELP sitesmith_runs_succeeded_total Total number of successful runs\n")
		sb.WriteString("# TYPE sitesmith_runs_succeeded_total counter\n")
		sb.WriteString(fmt.Sprintf("sitesmith_runs_succeeded_total %d\n\n", m.runsSucceeded.Load()))

		sb.WriteString("# HELP sitesmith_runs_failed_total Total number of failed runs\n")
		sb.WriteString("# TYPE sitesmith_runs_failed_total counter\n")
		sb.WriteString(fmt.Sprintf("sitesmith_runs_failed_total %d\n\n", m.runsFailed.Load()))

		// Active runs gauge
		sb.WriteString("# HELP sitesmith_active_runs Number of runs currently in progress\n")
		sb.WriteString("# TYPE sitesmith_active_runs gauge\n")
		sb.WriteString(fmt.Sprintf("sitesmith_active_runs %d\n\n", m.activeRuns.Load()))

		// Run latency
		count := m.runLatencyCount.Load()
		sum := m.runLatencySum.Load()
		sb.WriteString("# HELP sitesmith_run_duration_milliseconds Provisioning run duration\n")
		sb.WriteString("# TYPE sitesmith_run_duration_milliseconds summary\n")
		sb.WriteString(fmt.Sprintf("sitesmith_run_duration_milliseconds_count %d\n", count))
		sb.WriteString(fmt.Sprintf("sitesmith_run_duration_milliseconds_sum %d\n\n", sum))

		// Provider calls
		sb.WriteString("# HELP sitesmith_provider_calls_total Outbound provider API calls\n")
		sb.WriteString("# TYPE sitesmith_provider_calls_total counter\n")

		m.mu.RLock()
		providers := make([]string, 0, len(m.providerCalls))
		for p := range m.providerCalls {
			providers = append(providers, p)
		}
		sort.Strings(providers)

		for _, p := range providers {
			sb.WriteString(fmt.Sprintf("sitesmith_provider_calls_total{provider=%q} %d\n",
				p, m.providerCalls[p].Load()))
		}
		m.mu.RUnlock()

		sb.WriteString("\n")

		sb.WriteString("# HELP sitesmith_provider_errors_total Failed provider API calls\n")
		sb.WriteString("# TYPE sitesmith_provider_errors_total counter\n")

		m.mu.RLock()
		for _, p := range providers {
			if m.providerErrs[p] != nil {
				sb.WriteString(fmt.Sprintf("sitesmith_provider_errors_total{provider=%q} %d\n",
					p, m.providerErrs[p].Load()))
			}
		}
		m.mu.RUnlock()

		_, _ = w.Write([]byte(sb.String()))
	})
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	providerCalls := make(map[string]int64)
	for p, count := range m.providerCalls {
		providerCalls[p] = count.Load()
	}

	return MetricsSnapshot{
		RunsTotal:     m.runsTotal.Load(),
		RunsSucceeded: m.runsSucceeded.Load(),
		RunsFailed:    m.runsFailed.Load(),
		ActiveRuns:    m.activeRuns.Load(),
		ProviderCalls: providerCalls,
		Uptime:        time.Since(m.startTime),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RunsTotal     int64
	RunsSucceeded int64
	RunsFailed    int64
	ActiveRuns    int64
	ProviderCalls map[string]int64
	Uptime        time.Duration
}

// Global metrics instance with separate sync.Once for initialization control.
// This prevents race conditions where Global() could initialize with "unknown"
// before InitGlobal() is called.
var (
	globalMetrics     *Metrics
	globalMetricsOnce sync.Once
	initOnce          sync.Once
	initialized       bool
)

// Global returns the global metrics instance.
// If InitGlobal has not been called, this will initialize with "unknown" version.
func Global() *Metrics {
	globalMetricsOnce.Do(func() {
		if !initialized {
			globalMetrics = NewMetrics("unknown")
		}
	})
	return globalMetrics
}

// InitGlobal initializes the global metrics instance with version info.
// This should be called early in application startup, before any calls to Global().
func InitGlobal(version string) *Metrics {
	initOnce.Do(func() {
		initialized = true
		globalMetrics = NewMetrics(version)
	})
	globalMetricsOnce.Do(func() {})
	return globalMetrics
}
