// Package metrics collects counters describing a crawl run.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// bucketBounds are the upper bounds, in milliseconds, of the response time
// histogram buckets. The final bucket is open-ended.
var bucketBounds = [...]int64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

const bucketCount = len(bucketBounds) + 1

// Collector collects and aggregates metrics.
type Collector struct {
	// Counters
	requestsTotal atomic.Int64
	errorsTotal   atomic.Int64
	pagesCrawled  atomic.Int64
	legitLinks    atomic.Int64
	invalidLinks  atomic.Int64
	characters    atomic.Int64
	bytesTotal    atomic.Int64
	retriesTotal  atomic.Int64

	// Response time tracking
	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	// Gauges
	frontierDepth atomic.Int64

	responseTimeBuckets [bucketCount]atomic.Int64

	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	rejectionCounts map[string]*atomic.Int64
	rejectionMu     sync.RWMutex

	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts:     make(map[string]*atomic.Int64),
		rejectionCounts: make(map[string]*atomic.Int64),
		statusCodes:     make(map[int]*atomic.Int64),
		startTime:       time.Now(),
	}
}

// RecordRequest records a page fetch attempt.
func (c *Collector) RecordRequest() {
	c.requestsTotal.Add(1)
}

// RecordError records a page failure by type.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.Add(1)
	incr(&c.errorMu, c.errorCounts, errorType)
}

// RecordRejection records a rejected link by reason.
func (c *Collector) RecordRejection(reason string) {
	c.invalidLinks.Add(1)
	incr(&c.rejectionMu, c.rejectionCounts, reason)
}

func incr(mu *sync.RWMutex, m map[string]*atomic.Int64, key string) {
	mu.Lock()
	if m[key] == nil {
		m[key] = &atomic.Int64{}
	}
	m[key].Add(1)
	mu.Unlock()
}

// RecordResponseTime records a fetch duration.
func (c *Collector) RecordResponseTime(d time.Duration) {
	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseTimeBuckets[bucketFor(ms)].Add(1)
}

// bucketFor returns the histogram bucket for a response time.
func bucketFor(ms int64) int {
	for i, bound := range bucketBounds {
		if ms < bound {
			return i
		}
	}
	return bucketCount - 1
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	c.statusMu.Lock()
	if c.statusCodes[code] == nil {
		c.statusCodes[code] = &atomic.Int64{}
	}
	c.statusCodes[code].Add(1)
	c.statusMu.Unlock()
}

// RecordPageCrawled increments successfully processed pages.
func (c *Collector) RecordPageCrawled() {
	c.pagesCrawled.Add(1)
}

// RecordLegitLink increments newly accepted links.
func (c *Collector) RecordLegitLink() {
	c.legitLinks.Add(1)
}

// RecordCharacters adds newly seen code points.
func (c *Collector) RecordCharacters(n int) {
	c.characters.Add(int64(n))
}

// RecordBytes records transferred bytes.
func (c *Collector) RecordBytes(n int64) {
	c.bytesTotal.Add(n)
}

// RecordRetries records retry attempts beyond the first request.
func (c *Collector) RecordRetries(n int) {
	if n > 0 {
		c.retriesTotal.Add(int64(n))
	}
}

// SetFrontierDepth sets the number of links waiting to be visited.
func (c *Collector) SetFrontierDepth(depth int) {
	c.frontierDepth.Store(int64(depth))
}

// GetAverageResponseTime returns the average response time.
func (c *Collector) GetAverageResponseTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.startTime),
		RequestsTotal:       c.requestsTotal.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
		PagesCrawled:        c.pagesCrawled.Load(),
		LegitLinks:          c.legitLinks.Load(),
		InvalidLinks:        c.invalidLinks.Load(),
		Characters:          c.characters.Load(),
		BytesTotal:          c.bytesTotal.Load(),
		RetriesTotal:        c.retriesTotal.Load(),
		FrontierDepth:       c.frontierDepth.Load(),
		AverageResponseTime: c.GetAverageResponseTime(),
		ErrorCounts:         make(map[string]int64),
		RejectionCounts:     make(map[string]int64),
		StatusCodes:         make(map[int]int64),
		ResponseTimeHist:    make([]int64, bucketCount),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	c.rejectionMu.RLock()
	for k, v := range c.rejectionCounts {
		s.RejectionCounts[k] = v.Load()
	}
	c.rejectionMu.RUnlock()

	c.statusMu.RLock()
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v.Load()
	}
	c.statusMu.RUnlock()

	for i := range c.responseTimeBuckets {
		s.ResponseTimeHist[i] = c.responseTimeBuckets[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp" yaml:"timestamp"`
	Uptime              time.Duration    `json:"uptime" yaml:"uptime"`
	RequestsTotal       int64            `json:"requests_total" yaml:"requests_total"`
	ErrorsTotal         int64            `json:"errors_total" yaml:"errors_total"`
	PagesCrawled        int64            `json:"pages_crawled" yaml:"pages_crawled"`
	LegitLinks          int64            `json:"legit_links" yaml:"legit_links"`
	InvalidLinks        int64            `json:"invalid_links" yaml:"invalid_links"`
	Characters          int64            `json:"characters" yaml:"characters"`
	BytesTotal          int64            `json:"bytes_total" yaml:"bytes_total"`
	RetriesTotal        int64            `json:"retries_total" yaml:"retries_total"`
	FrontierDepth       int64            `json:"frontier_depth" yaml:"frontier_depth"`
	AverageResponseTime time.Duration    `json:"average_response_time" yaml:"average_response_time"`
	ErrorCounts         map[string]int64 `json:"error_counts" yaml:"error_counts"`
	RejectionCounts     map[string]int64 `json:"rejection_counts" yaml:"rejection_counts"`
	StatusCodes         map[int]int64    `json:"status_codes" yaml:"status_codes"`
	ResponseTimeHist    []int64          `json:"response_time_histogram" yaml:"response_time_histogram"`
}

// ErrorRate returns the error rate (errors/requests).
func (s *Snapshot) ErrorRate() float64 {
	if s.RequestsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.RequestsTotal)
}

// Summary returns a flat view suitable for structured logging.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":               s.Uptime.String(),
		"requests_total":       s.RequestsTotal,
		"errors_total":         s.ErrorsTotal,
		"error_rate":           s.ErrorRate(),
		"pages_crawled":        s.PagesCrawled,
		"legit_links":          s.LegitLinks,
		"invalid_links":        s.InvalidLinks,
		"characters":           s.Characters,
		"bytes_total":          s.BytesTotal,
		"frontier_depth":       s.FrontierDepth,
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}
