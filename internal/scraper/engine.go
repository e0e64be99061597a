// internal/scraper/engine.go
package scraper

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

// Engine is the long-lived extraction engine. It owns the result cache and
// the metrics recorder; every other call is independent. All methods are safe
// for concurrent use.
type Engine struct {
	config    Config
	baseURL   *url.URL
	cache     *Cache
	metrics   *MetricsRecorder
	logger    utils.Logger
	clock     utils.Clock
	titles    *PatchTitleNormalizer
	images    *utils.ImageURLValidator
	limiter   *rate.Limiter
	sanitizer *bluemonday.Policy
	observer  MetricsObserver
	reducers  map[TaskKind]taskReducer
}

// Option customizes an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger utils.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the clock used for cache expiry and synthesized versions
func WithClock(clock utils.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithMetricsObserver forwards every metrics observation to observer
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// WithImageValidator replaces the image reference validator
func WithImageValidator(v *utils.ImageURLValidator) Option {
	return func(e *Engine) {
		if v != nil {
			e.images = v
		}
	}
}

// WithTitleNormalizer replaces the patch title normalizer
func WithTitleNormalizer(n *PatchTitleNormalizer) Option {
	return func(e *Engine) {
		if n != nil {
			e.titles = n
		}
	}
}

// NewEngine creates an engine. Zero fields of cfg take their defaults.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidConfig, "invalid engine configuration")
	}
	cfg.applyDefaults()

	sanitizer := bluemonday.StrictPolicy()
	sanitizer.AddSpaceWhenStrippingTag(true)

	e := &Engine{
		config:    cfg,
		logger:    utils.NewNopLogger(),
		clock:     utils.SystemClock{},
		images:    utils.NewImageURLValidator(),
		sanitizer: sanitizer,
	}
	e.reducers = map[TaskKind]taskReducer{
		TaskExtract: e.extractTask,
		TaskSearch:  e.searchTask,
		TaskAnalyze: e.analyzeTask,
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil || base.Scheme == "" || base.Host == "" {
			return nil, utils.NewError(utils.ErrCodeInvalidConfig, fmt.Sprintf("base_url %q must be an absolute URL", cfg.BaseURL)).
				WithCause(err).Build()
		}
		e.baseURL = base
	}
	if e.titles == nil {
		e.titles = NewPatchTitleNormalizer(cfg.TitleFormat)
	}
	if cfg.TaskRateLimit > 0 {
		burst := int(cfg.TaskRateLimit)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.TaskRateLimit), burst)
	}

	e.cache = NewCache(cfg.CacheTTL, e.clock)
	e.metrics = NewMetricsRecorder(e.observer)
	return e, nil
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.config
}

// Cache exposes the engine cache for introspection
func (e *Engine) Cache() *Cache {
	return e.cache
}

// MetricsSnapshot returns a copy of the accumulated metrics
func (e *Engine) MetricsSnapshot() Metrics {
	return e.metrics.Snapshot()
}

// ResetMetrics clears the accumulated metrics
func (e *Engine) ResetMetrics() {
	e.metrics.Reset()
}

// ClearCache drops every cached result
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// cachedOutcome serves op from the cache, or computes, stores and records it.
// variant is op with the parameters that change the result folded in; it
// keys the cache while metrics are recorded under op. Cache hits are not
// counted as operations.
func cachedOutcome[T any](e *Engine, op, variant string, scope *goquery.Selection, chain []string, compute func() Outcome[T]) Outcome[T] {
	key := CacheKey(variant, Fingerprint(serialize(scope), e.config.FingerprintLength), chain)
	if entry, ok := e.cache.Get(key); ok {
		if out, ok := entry.Value.(Outcome[T]); ok {
			e.metrics.RecordCache(op, true)
			return out
		}
	}
	e.metrics.RecordCache(op, false)

	out := compute()
	e.cache.Set(key, out, map[string]string{"operation": op})
	e.metrics.RecordOperation(op, out.Success, out.ElapsedTime)
	return out
}

// documentContext identifies what a call reads outside its scope: the base
// URL references are resolved against and, when the call may search the
// whole document, that document's content
func (e *Engine) documentContext(scope SearchScope, searchesDocument bool) string {
	var key string
	if base := e.baseFor(scope); base != nil {
		key = base.String()
	}
	if searchesDocument && scope.Kind == ScopeContainer && scope.Document != nil {
		key += "@" + scope.Document.Fingerprint()
	}
	return key
}

// opKey folds call parameters that change the result into the cache operation name
func opKey(op string, params ...any) string {
	for _, p := range params {
		switch v := p.(type) {
		case bool:
			op += "#" + strconv.FormatBool(v)
		case int:
			op += "#" + strconv.Itoa(v)
		case string:
			op += "#" + v
		}
	}
	return op
}
