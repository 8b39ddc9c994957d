package authkit

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint8

const (
	// MetricLoginSuccess counts successful credential logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected credential logins.
	MetricLoginFailure
	// MetricRegistration counts created accounts.
	MetricRegistration
	// MetricAccessAccepted counts requests authenticated by a valid access cookie.
	MetricAccessAccepted
	// MetricRefreshSuccess counts requests authenticated via the refresh fallback.
	MetricRefreshSuccess
	// MetricUnauthorized counts requests that failed both cookie paths.
	MetricUnauthorized
	// MetricRevocation counts explicit version bumps.
	MetricRevocation
	// MetricPasswordChange counts completed password changes.
	MetricPasswordChange

	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:   "login_success",
	MetricLoginFailure:   "login_failure",
	MetricRegistration:   "registration",
	MetricAccessAccepted: "access_accepted",
	MetricRefreshSuccess: "refresh_success",
	MetricUnauthorized:   "unauthorized",
	MetricRevocation:     "revocation",
	MetricPasswordChange: "password_change",
}

// Name returns the stable snake_case name of the metric, used by exporters.
func (id MetricID) Name() string {
	if id >= metricCount {
		return "unknown"
	}
	return metricNames[id]
}

// Metrics is a fixed set of lock-free counters.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments one counter. Safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
