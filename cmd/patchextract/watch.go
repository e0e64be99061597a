// cmd/patchextract/watch.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/config"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/monitoring"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/scraper"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const (
	shutdownTimeout    = 5 * time.Second
	maxGoroutines      = 1000
	maxFailureRatio    = 0.5
	healthCheckTimeout = 2 * time.Second
)

type watchOptions struct {
	listen        string
	checkInterval time.Duration
	extract       extractOptions
}

func newWatchCommand(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch <page.html>",
		Short: "Re-extract whenever the page or configuration changes",
		Long: `Extracts the page once, then again every time the page file or the
configuration file is written. A configuration that fails to load keeps the
previous one active and marks /healthz unhealthy until a good file is saved.
Prometheus metrics are served on the configured path.`,
		Example: `  patchextract watch --config patch.yaml --listen :9090 page.html`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", "", "address for /metrics and /healthz (default from configuration)")
	cmd.Flags().DurationVar(&opts.checkInterval, "check-interval", 30*time.Second, "interval between health checks")
	cmd.Flags().IntVarP(&opts.extract.limit, "limit", "n", 0, "maximum number of patch notes (0 for all)")
	cmd.Flags().StringVar(&opts.extract.baseURL, "base-url", "", "URL the page was fetched from, for resolving relative links")
	return cmd
}

// watchSession holds the engine that is swapped on every good reload
type watchSession struct {
	page    string
	opts    extractOptions
	metrics  *monitoring.ExtractionMetrics
	triggers *prometheus.CounterVec
	logger   utils.Logger

	mu        sync.RWMutex
	engine    *scraper.Engine
	cfg       *config.EngineConfig
	reloadErr error

	// serializes extractions and their output
	runMu sync.Mutex
	out   io.Writer
}

func newWatchSession(cfg *config.EngineConfig, logger utils.Logger, page string, opts extractOptions, out io.Writer) (*watchSession, error) {
	mc := monitoring.MetricsConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableGoMetrics:      true,
		EnableProcessMetrics: true,
	}
	if cfg.Name != "" {
		mc.Labels = map[string]string{"config": cfg.Name}
	}
	metrics := monitoring.NewExtractionMetrics(mc)
	triggers, err := metrics.RegisterCustomCounter("watch_triggers_total",
		"Extractions started by the watch loop, by cause.", []string{"cause"})
	if err != nil {
		return nil, err
	}

	engine, err := buildEngine(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	opts.showMetrics = true
	return &watchSession{
		page:     page,
		opts:     opts,
		metrics:  metrics,
		triggers: triggers,
		logger:   logger.WithField("page", page),
		engine:   engine,
		cfg:      cfg,
		out:      out,
	}, nil
}

// applyConfig swaps in a reloaded configuration. A load error leaves the
// active engine in place.
func (s *watchSession) applyConfig(ctx context.Context, cfg *config.EngineConfig, loadErr error) {
	var engine *scraper.Engine
	err := loadErr
	if err == nil {
		engine, err = buildEngine(cfg, s.logger, s.metrics)
	}

	s.mu.Lock()
	s.reloadErr = err
	if err == nil {
		s.engine, s.cfg = engine, cfg
	}
	s.mu.Unlock()

	s.metrics.RecordConfigReload(err == nil)
	if err != nil {
		s.logger.Warnf("keeping previous configuration: %v", err)
		return
	}
	s.logger.Info("configuration applied")
	s.extract(ctx, triggerConfig)
}

func (s *watchSession) lastReloadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reloadErr
}

func (s *watchSession) current() (*scraper.Engine, *config.EngineConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, s.cfg
}

func (s *watchSession) snapshot() scraper.Metrics {
	engine, _ := s.current()
	return engine.MetricsSnapshot()
}

// extraction causes counted by watch_triggers_total
const (
	triggerStart  = "start"
	triggerPage   = "page"
	triggerConfig = "config"
)

// extract runs one extraction and prints its report. Failures are logged;
// the next change triggers another attempt.
func (s *watchSession) extract(ctx context.Context, cause string) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.triggers.WithLabelValues(cause).Inc()
	if err := s.extractOnce(ctx); err != nil {
		s.logger.Errorf("extraction failed: %v", err)
	}
}

func (s *watchSession) extractOnce(ctx context.Context) error {
	engine, cfg := s.current()

	f, err := os.Open(s.page)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeInvalidInput, "failed to open page")
	}
	defer f.Close()
	doc, err := scraper.NewDocumentFromReader(f)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeParsingError, "failed to parse page")
	}

	opts := s.opts
	report, err := buildReport(ctx, engine, cfg, doc, s.page, &opts)
	if err != nil {
		return err
	}
	s.metrics.MarkExtraction(time.Now())
	s.logger.WithField("notes", len(report.Notes)).Info("page extracted")
	return writeJSON(s.out, report)
}

// healthManager registers the checks served on /healthz
func (s *watchSession) healthManager(interval time.Duration) *monitoring.HealthManager {
	hm := monitoring.NewHealthManager(monitoring.HealthConfig{
		CheckInterval:  interval,
		DefaultTimeout: healthCheckTimeout,
	})
	hm.RegisterCheck(monitoring.ConfigHealthCheck(s.lastReloadError))
	hm.RegisterCheck(monitoring.ExtractionHealthCheck(s.snapshot, maxFailureRatio))
	hm.RegisterCheck(monitoring.GoroutineHealthCheck(maxGoroutines))
	return hm
}

func newWatchRouter(metricsPath string, metrics *monitoring.ExtractionMetrics, health *monitoring.HealthManager) *mux.Router {
	r := mux.NewRouter()
	r.Handle(metricsPath, metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", health.HealthHandler()).Methods(http.MethodGet)
	return r
}

func runWatch(cmd *cobra.Command, root *rootOptions, page string, opts *watchOptions) error {
	if page == "-" {
		return utils.NewError(utils.ErrCodeInvalidInput, "watch needs a page file, not standard input").Build()
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger, err := root.logger(cfg)
	if err != nil {
		return err
	}

	session, err := newWatchSession(cfg, logger, page, opts.extract, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pages, err := config.NewFileWatcher(logger, page)
	if err != nil {
		return err
	}
	defer pages.Close()
	pages.OnChange(func(string) { session.extract(ctx, triggerPage) })

	if root.configFile != "" {
		configs, err := config.NewConfigWatcher(root.configFile, logger)
		if err != nil {
			return err
		}
		defer configs.Close()
		configs.OnChange(func(next *config.EngineConfig, err error) {
			session.applyConfig(ctx, next, err)
		})
	}

	health := session.healthManager(opts.checkInterval)
	health.Start(ctx)
	defer health.Stop()

	listen := opts.listen
	if listen == "" {
		listen = cfg.Metrics.Listen
	}
	server := &http.Server{
		Addr:              listen,
		Handler:           newWatchRouter(cfg.Metrics.Path, session.metrics, health),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	logger.Infof("serving %s and /healthz on %s", cfg.Metrics.Path, listen)

	session.extract(ctx, triggerStart)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
