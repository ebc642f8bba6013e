package observability

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestNewMetricsCollector_ZeroSize(t *testing.T) {
	c := NewMetricsCollector(0)
	if c.maxSize != 2048 {
		t.Errorf("maxSize = %d, want 2048", c.maxSize)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestMetricsCollector_RingBuffer(t *testing.T) {
	c := NewMetricsCollector(3)
	for i := 0; i < 5; i++ {
		c.Record(MetricProgress, float64(i), nil)
	}

	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
	points := c.Query(MetricProgress, time.Time{})
	if len(points) != 3 {
		t.Fatalf("Query = %d, want 3", len(points))
	}
	if points[0].Value != 2 {
		t.Errorf("oldest = %f, want 2", points[0].Value)
	}
	if points[2].Value != 4 {
		t.Errorf("newest = %f, want 4", points[2].Value)
	}
}

func TestMetricsCollector_Counters(t *testing.T) {
	c := NewMetricsCollector(100)
	c.Increment(CounterRequests)
	c.Increment(CounterRequests)
	c.Increment(ErrorCounter("hard"))
	c.IncrementBy(JobCounter("completed"), 3)

	if c.Counter(CounterRequests) != 2 {
		t.Errorf("requests = %d", c.Counter(CounterRequests))
	}
	if c.Counter("errors.hard") != 1 {
		t.Errorf("errors.hard = %d", c.Counter("errors.hard"))
	}
	if c.Counter("jobs.completed") != 3 {
		t.Errorf("jobs.completed = %d", c.Counter("jobs.completed"))
	}
	if c.Counter("missing") != 0 {
		t.Errorf("missing counter = %d", c.Counter("missing"))
	}

	snap := c.Snapshot()
	snap[CounterRequests] = 99
	if c.Counter(CounterRequests) != 2 {
		t.Error("Snapshot must be a copy")
	}
}

func TestMetricsCollector_Summarize(t *testing.T) {
	c := NewMetricsCollector(100)
	for _, ms := range []int{10, 20, 30, 40, 50} {
		c.ObserveLatency("GET /status", time.Duration(ms)*time.Millisecond)
	}

	s := c.Summarize(MetricLatency, time.Time{})
	if s.Count != 5 {
		t.Errorf("Count = %d", s.Count)
	}
	if math.Abs(s.Mean-30) > 0.001 {
		t.Errorf("Mean = %f", s.Mean)
	}
	if s.Min != 10 || s.Max != 50 {
		t.Errorf("Min/Max = %f/%f", s.Min, s.Max)
	}
	if math.Abs(s.P50-30) > 0.001 {
		t.Errorf("P50 = %f", s.P50)
	}

	if empty := c.Summarize(MetricJobTime, time.Time{}); empty.Count != 0 {
		t.Errorf("empty summary Count = %d", empty.Count)
	}
}

func TestMetricsCollector_QuerySince(t *testing.T) {
	c := NewMetricsCollector(10)
	c.Record(MetricProgress, 10, nil)
	future := time.Now().Add(time.Hour)
	if got := c.Query(MetricProgress, future); len(got) != 0 {
		t.Errorf("Query(since future) = %d points", len(got))
	}
}

func TestMetricsCollector_Line(t *testing.T) {
	c := NewMetricsCollector(10)
	c.Increment(CounterRequests)
	c.Increment(ErrorCounter("hard"))
	c.Increment(ErrorCounter("soft"))
	c.ObserveLatency("GET /dashboard", 12*time.Millisecond)

	line := c.Line()
	if !strings.HasPrefix(line, "1 req") {
		t.Errorf("Line = %q", line)
	}
	if !strings.HasSuffix(line, "1 err") {
		t.Errorf("soft errors should not count: %q", line)
	}
}

func TestPercentile(t *testing.T) {
	if percentile(nil, 0.5) != 0 {
		t.Error("empty percentile should be 0")
	}
	if got := percentile([]float64{7}, 0.95); got != 7 {
		t.Errorf("single = %f", got)
	}
}
