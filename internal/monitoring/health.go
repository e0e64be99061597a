// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/scraper"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name      string                                     `json:"name"`
	Status    HealthStatus                               `json:"status"`
	Message   string                                     `json:"message,omitempty"`
	Error     string                                     `json:"error,omitempty"`
	LastCheck time.Time                                  `json:"last_check"`
	Duration  time.Duration                              `json:"duration"`
	Metadata  map[string]interface{}                     `json:"metadata,omitempty"`
	CheckFunc func(ctx context.Context) HealthCheckResult `json:"-"`
	Timeout   time.Duration                              `json:"-"`
	Critical  bool                                       `json:"critical"`
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus
	Message  string
	Error    error
	Metadata map[string]interface{}
}

// HealthConfig configuration for health monitoring
type HealthConfig struct {
	CheckInterval  time.Duration `json:"check_interval"`
	DefaultTimeout time.Duration `json:"default_timeout"`
}

// HealthSummary provides a summary of health checks
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
	Unknown   int `json:"unknown"`
}

// SystemHealth represents overall health information
type SystemHealth struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
	Checks    []HealthCheck `json:"checks"`
	Summary   HealthSummary `json:"summary"`
}

// HealthManager runs registered checks and reports the aggregate status
type HealthManager struct {
	checks    map[string]*HealthCheck
	mutex     sync.RWMutex
	config    HealthConfig
	startTime time.Time
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// NewHealthManager creates a new health manager
func NewHealthManager(config HealthConfig) *HealthManager {
	if config.CheckInterval == 0 {
		config.CheckInterval = 30 * time.Second
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 5 * time.Second
	}
	return &HealthManager{
		checks:    make(map[string]*HealthCheck),
		config:    config,
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
	}
}

// RegisterCheck registers a health check. Until it first runs its status is unknown.
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = hm.config.DefaultTimeout
	}
	if check.Status == "" {
		check.Status = HealthStatusUnknown
	}

	hm.mutex.Lock()
	hm.checks[check.Name] = check
	hm.mutex.Unlock()
}

// Start runs every check now and then on each interval until ctx ends or
// Stop is called
func (hm *HealthManager) Start(ctx context.Context) {
	ticker := time.NewTicker(hm.config.CheckInterval)
	go func() {
		defer ticker.Stop()
		hm.RunChecks(ctx)
		for {
			select {
			case <-ticker.C:
				hm.RunChecks(ctx)
			case <-hm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the periodic checks
func (hm *HealthManager) Stop() {
	hm.stopOnce.Do(func() { close(hm.stopCh) })
}

// RunChecks runs all registered checks concurrently and waits for them
func (hm *HealthManager) RunChecks(ctx context.Context) {
	hm.mutex.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.mutex.RUnlock()

	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c *HealthCheck) {
			defer wg.Done()
			hm.runCheck(ctx, c)
		}(check)
	}
	wg.Wait()
}

func (hm *HealthManager) runCheck(ctx context.Context, check *HealthCheck) {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	result := HealthCheckResult{Status: HealthStatusUnknown, Message: "no check function defined"}
	if check.CheckFunc != nil {
		result = check.CheckFunc(checkCtx)
	}

	hm.mutex.Lock()
	defer hm.mutex.Unlock()
	check.LastCheck = start
	check.Duration = time.Since(start)
	check.Status = result.Status
	check.Message = result.Message
	check.Metadata = result.Metadata
	check.Error = ""
	if result.Error != nil {
		check.Error = result.Error.Error()
	}
}

// GetHealth returns the overall health status. A failing critical check makes
// the whole service unhealthy; anything else short of healthy degrades it.
func (hm *HealthManager) GetHealth() SystemHealth {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	health := SystemHealth{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime),
		Checks:    make([]HealthCheck, 0, len(hm.checks)),
	}

	for _, check := range hm.checks {
		health.Checks = append(health.Checks, *check)
		health.Summary.Total++

		switch check.Status {
		case HealthStatusHealthy:
			health.Summary.Healthy++
			continue
		case HealthStatusUnhealthy:
			health.Summary.Unhealthy++
			if check.Critical {
				health.Status = HealthStatusUnhealthy
				continue
			}
		case HealthStatusDegraded:
			health.Summary.Degraded++
		default:
			health.Summary.Unknown++
		}
		if health.Status == HealthStatusHealthy {
			health.Status = HealthStatusDegraded
		}
	}
	sort.Slice(health.Checks, func(i, j int) bool {
		return health.Checks[i].Name < health.Checks[j].Name
	})
	return health
}

// HealthHandler serves the aggregate status as JSON; unhealthy answers 503
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(health)
	}
}

// ConfigHealthCheck reports the outcome of the last configuration load.
// lastErr returns nil while the active configuration is the latest one.
func ConfigHealthCheck(lastErr func() error) *HealthCheck {
	return &HealthCheck{
		Name:     "config",
		Critical: true,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := lastErr(); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusUnhealthy,
					Message: "configuration reload failed",
					Error:   err,
				}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Message: "configuration loaded"}
		},
	}
}

// ExtractionHealthCheck degrades when the share of failed engine operations
// exceeds maxFailureRatio
func ExtractionHealthCheck(snapshot func() scraper.Metrics, maxFailureRatio float64) *HealthCheck {
	return &HealthCheck{
		Name: "extraction",
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			m := snapshot()
			metadata := map[string]interface{}{
				"total_operations":  m.TotalOps,
				"failed_operations": m.FailOps,
				"cache_hit_ratio":   m.CacheHitRatio,
			}
			if m.TotalOps == 0 {
				return HealthCheckResult{Status: HealthStatusHealthy, Message: "no operations yet", Metadata: metadata}
			}

			ratio := float64(m.FailOps) / float64(m.TotalOps)
			metadata["failure_ratio"] = ratio
			if ratio > maxFailureRatio {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("high failure ratio: %.2f", ratio),
					Metadata: metadata,
				}
			}
			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  fmt.Sprintf("failure ratio normal: %.2f", ratio),
				Metadata: metadata,
			}
		},
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) *HealthCheck {
	return &HealthCheck{
		Name: "goroutines",
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()
			metadata := map[string]interface{}{
				"goroutine_count": count,
				"max_allowed":     maxGoroutines,
			}
			if count > maxGoroutines {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("high goroutine count: %d", count),
					Metadata: metadata,
				}
			}
			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  fmt.Sprintf("goroutine count normal: %d", count),
				Metadata: metadata,
			}
		},
	}
}
