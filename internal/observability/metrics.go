package observability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType categorizes what is being measured.
type MetricType string

const (
	MetricLatency  MetricType = "request_latency_ms"
	MetricProgress MetricType = "job_progress"
	MetricJobTime  MetricType = "job_duration_ms"
)

// Counter names.
const (
	CounterRequests  = "requests"
	CounterPollTicks = "poll_ticks"
)

// ErrorCounter is the counter name for failures of a given kind label.
func ErrorCounter(kind string) string { return "errors." + kind }

// JobCounter is the counter name for jobs ending with a given outcome.
func JobCounter(outcome string) string { return "jobs." + outcome }

// MetricPoint is a single recorded data point.
type MetricPoint struct {
	Type      MetricType `json:"type"`
	Value     float64    `json:"value"`
	Labels    Labels     `json:"labels,omitempty"` // e.g., {"op": "GET /dashboard"}
	Timestamp time.Time  `json:"timestamp"`
}

// Labels are key-value metadata on a metric.
type Labels map[string]string

// MetricsCollector collects in-memory metrics with a rolling window.
type MetricsCollector struct {
	mu       sync.RWMutex
	points   []MetricPoint
	maxSize  int
	counters map[string]int64
}

// NewMetricsCollector creates a collector with a max ring buffer size.
func NewMetricsCollector(maxSize int) *MetricsCollector {
	if maxSize <= 0 {
		maxSize = 2048
	}
	return &MetricsCollector{
		points:   make([]MetricPoint, 0, maxSize),
		maxSize:  maxSize,
		counters: make(map[string]int64),
	}
}

// Record adds a metric data point, dropping the oldest when full.
func (c *MetricsCollector) Record(mt MetricType, value float64, labels Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()

	point := MetricPoint{
		Type:      mt,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	}
	if len(c.points) >= c.maxSize {
		copy(c.points, c.points[1:])
		c.points[len(c.points)-1] = point
		return
	}
	c.points = append(c.points, point)
}

// ObserveLatency records a request duration for an operation.
func (c *MetricsCollector) ObserveLatency(op string, d time.Duration) {
	c.Record(MetricLatency, float64(d.Microseconds())/1000, Labels{"op": op})
}

// Increment increments a named counter.
func (c *MetricsCollector) Increment(name string) {
	c.IncrementBy(name, 1)
}

// IncrementBy increments a named counter by n.
func (c *MetricsCollector) IncrementBy(name string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += n
}

// Counter returns the current value of a counter.
func (c *MetricsCollector) Counter(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// Query returns metric points matching type and optional time window.
// If since is zero, returns all points of this type.
func (c *MetricsCollector) Query(mt MetricType, since time.Time) []MetricPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []MetricPoint
	for _, p := range c.points {
		if p.Type != mt {
			continue
		}
		if !since.IsZero() && p.Timestamp.Before(since) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// Summary holds aggregate statistics for a metric type.
type Summary struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// Summarize returns aggregate statistics for a metric type.
func (c *MetricsCollector) Summarize(mt MetricType, since time.Time) Summary {
	points := c.Query(mt, since)
	if len(points) == 0 {
		return Summary{}
	}

	values := make([]float64, len(points))
	sum := 0.0
	for i, p := range points {
		values[i] = p.Value
		sum += p.Value
	}
	sort.Float64s(values)

	return Summary{
		Count: len(values),
		Sum:   sum,
		Mean:  sum / float64(len(values)),
		Min:   values[0],
		Max:   values[len(values)-1],
		P50:   percentile(values, 0.50),
		P95:   percentile(values, 0.95),
	}
}

// Len returns total number of recorded points.
func (c *MetricsCollector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}

// Snapshot returns a copy of current counters.
func (c *MetricsCollector) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		snap[k] = v
	}
	return snap
}

// Line renders a one-line summary for status bars:
// "12 req · p50 34ms · p95 120ms · 1 err".
func (c *MetricsCollector) Line() string {
	s := c.Summarize(MetricLatency, time.Time{})
	var errs int64
	for name, v := range c.Snapshot() {
		if strings.HasPrefix(name, "errors.") && name != ErrorCounter("soft") {
			errs += v
		}
	}
	return fmt.Sprintf("%d req · p50 %.0fms · p95 %.0fms · %d err",
		c.Counter(CounterRequests), s.P50, s.P95, errs)
}

// percentile computes the p-th percentile from sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
