// internal/scraper/metrics.go
package scraper

import (
	"sync"
	"time"
)

// MetricsObserver receives every observation the recorder makes. The
// monitoring package implements it with Prometheus collectors.
type MetricsObserver interface {
	ObserveOperation(operation string, success bool, duration time.Duration)
	ObserveSelector(selector string, success bool)
	ObserveCache(operation string, hit bool)
}

// Metrics is an immutable snapshot of the recorder
type Metrics struct {
	TotalOps               int64                    `json:"total_operations"`
	SuccessOps             int64                    `json:"successful_operations"`
	FailOps                int64                    `json:"failed_operations"`
	CacheHits              int64                    `json:"cache_hits"`
	CacheMisses            int64                    `json:"cache_misses"`
	CacheHitRatio          float64                  `json:"cache_hit_ratio"`
	PerSelectorSuccessRate map[string]float64       `json:"per_selector_success_rate"`
	PerOperationCount      map[string]int64         `json:"per_operation_count"`
	AverageDuration        map[string]time.Duration `json:"average_duration"`
	StartTime              time.Time                `json:"start_time"`
}

type selectorStats struct {
	attempts  int64
	successes int64
}

type operationStats struct {
	count   int64
	average time.Duration
}

// MetricsRecorder accumulates per-operation and per-selector counters
type MetricsRecorder struct {
	totalOps    int64
	successOps  int64
	failOps     int64
	cacheHits   int64
	cacheMisses int64
	operations  map[string]*operationStats
	selectors   map[string]*selectorStats
	startTime   time.Time
	observer    MetricsObserver
	mutex       sync.Mutex
}

// NewMetricsRecorder creates a recorder; observer may be nil
func NewMetricsRecorder(observer MetricsObserver) *MetricsRecorder {
	return &MetricsRecorder{
		operations: make(map[string]*operationStats),
		selectors:  make(map[string]*selectorStats),
		startTime:  time.Now(),
		observer:   observer,
	}
}

// RecordOperation records one completed operation
func (mr *MetricsRecorder) RecordOperation(operation string, success bool, duration time.Duration) {
	mr.mutex.Lock()
	mr.totalOps++
	if success {
		mr.successOps++
	} else {
		mr.failOps++
	}

	stats, ok := mr.operations[operation]
	if !ok {
		stats = &operationStats{}
		mr.operations[operation] = stats
	}
	stats.count++
	// incremental mean avoids keeping a running total that could overflow
	stats.average += (duration - stats.average) / time.Duration(stats.count)
	observer := mr.observer
	mr.mutex.Unlock()

	if observer != nil {
		observer.ObserveOperation(operation, success, duration)
	}
}

// RecordSelector records one selector evaluation
func (mr *MetricsRecorder) RecordSelector(selector string, success bool) {
	mr.mutex.Lock()
	stats, ok := mr.selectors[selector]
	if !ok {
		stats = &selectorStats{}
		mr.selectors[selector] = stats
	}
	stats.attempts++
	if success {
		stats.successes++
	}
	observer := mr.observer
	mr.mutex.Unlock()

	if observer != nil {
		observer.ObserveSelector(selector, success)
	}
}

// RecordCache records a cache lookup result
func (mr *MetricsRecorder) RecordCache(operation string, hit bool) {
	mr.mutex.Lock()
	if hit {
		mr.cacheHits++
	} else {
		mr.cacheMisses++
	}
	observer := mr.observer
	mr.mutex.Unlock()

	if observer != nil {
		observer.ObserveCache(operation, hit)
	}
}

// Snapshot returns a deep copy of the current counters
func (mr *MetricsRecorder) Snapshot() Metrics {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()

	m := Metrics{
		TotalOps:               mr.totalOps,
		SuccessOps:             mr.successOps,
		FailOps:                mr.failOps,
		CacheHits:              mr.cacheHits,
		CacheMisses:            mr.cacheMisses,
		PerSelectorSuccessRate: make(map[string]float64, len(mr.selectors)),
		PerOperationCount:      make(map[string]int64, len(mr.operations)),
		AverageDuration:        make(map[string]time.Duration, len(mr.operations)),
		StartTime:              mr.startTime,
	}
	if lookups := mr.cacheHits + mr.cacheMisses; lookups > 0 {
		m.CacheHitRatio = float64(mr.cacheHits) / float64(lookups)
	}
	for sel, s := range mr.selectors {
		if s.attempts > 0 {
			m.PerSelectorSuccessRate[sel] = float64(s.successes) / float64(s.attempts)
		}
	}
	for op, s := range mr.operations {
		m.PerOperationCount[op] = s.count
		m.AverageDuration[op] = s.average
	}
	return m
}

// Reset clears every counter
func (mr *MetricsRecorder) Reset() {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()

	mr.totalOps = 0
	mr.successOps = 0
	mr.failOps = 0
	mr.cacheHits = 0
	mr.cacheMisses = 0
	mr.operations = make(map[string]*operationStats)
	mr.selectors = make(map[string]*selectorStats)
	mr.startTime = time.Now()
}
