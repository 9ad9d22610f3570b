package observability

import (
	"sync"
	"time"
)

type routeStats struct {
	count     int64
	errors    int64
	totalTime time.Duration
}

// Metrics keeps per-route request counters in memory. It is nil-safe so
// callers never have to guard the recording calls.
type Metrics struct {
	mu     sync.Mutex
	routes map[string]*routeStats
}

// RouteSnapshot is a point-in-time view of one route's counters.
type RouteSnapshot struct {
	Route     string `json:"route"`
	Requests  int64  `json:"requests"`
	Errors    int64  `json:"errors"`
	AvgTimeMs int64  `json:"avgTimeMs"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{routes: make(map[string]*routeStats)}
}

// RecordRequest counts a completed request against its route.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.route(method + " " + path)
	stats.count++
	stats.totalTime += duration
	if status >= 500 {
		stats.errors++
	}
}

// RecordError counts a request that resolved to an application error.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route(method+" "+path).errors++
}

// Snapshot returns current counters for every route seen so far.
func (m *Metrics) Snapshot() []RouteSnapshot {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]RouteSnapshot, 0, len(m.routes))
	for route, stats := range m.routes {
		snap := RouteSnapshot{Route: route, Requests: stats.count, Errors: stats.errors}
		if stats.count > 0 {
			snap.AvgTimeMs = int64(stats.totalTime/time.Duration(stats.count)) / int64(time.Millisecond)
		}
		result = append(result, snap)
	}
	return result
}

func (m *Metrics) route(key string) *routeStats {
	stats, ok := m.routes[key]
	if !ok {
		stats = &routeStats{}
		m.routes[key] = stats
	}
	return stats
}
