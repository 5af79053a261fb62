package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/PhishGuard/internal/api/http"
	"github.com/GriffinCanCode/PhishGuard/internal/api/middleware"
	"github.com/GriffinCanCode/PhishGuard/internal/api/ws"
	"github.com/GriffinCanCode/PhishGuard/internal/domain/allowlist"
	"github.com/GriffinCanCode/PhishGuard/internal/domain/coordinator"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/config"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/PhishGuard/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/PhishGuard/internal/providers/classifier"
	"github.com/GriffinCanCode/PhishGuard/internal/providers/settings"
)

// Option customizes NewServer.
type Option func(*options)

type options struct {
	logger   *logging.Logger
	registry *prometheus.Registry
	store    settings.Store
}

// WithLogger replaces the logger built from the config.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithStore replaces the settings store selected by the config.
func WithStore(s settings.Store) Option {
	return func(o *options) { o.store = s }
}

// Server wraps the HTTP server and dependencies
type Server struct {
	config  *config.Config
	router  *gin.Engine
	http    *http.Server
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	store      settings.Store
	mirror     *settings.Mirror
	classifier *classifier.Client
	coord      *coordinator.Coordinator
	hub        *ws.Hub
}

// NewServer wires the detection layer and its render-layer API.
func NewServer(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	logger.Info("Initializing PhishGuard",
		zap.String("addr", cfg.Addr()),
		zap.String("classifier", cfg.Classifier.URL),
	)

	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics := monitoring.NewMetrics(reg)
	tracer := tracing.New("phishguard", logger.Component("tracing"))

	store := o.store
	if store == nil {
		var err error
		store, err = openStore(ctx, cfg.Settings.Path, logger)
		if err != nil {
			tracer.Close()
			return nil, err
		}
	}

	mirror, err := settings.NewMirror(ctx, store, logger.Component("settings"))
	if err != nil {
		store.Close()
		tracer.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := mirror.Install(ctx); err != nil {
		mirror.Close()
		store.Close()
		tracer.Close()
		return nil, fmt.Errorf("failed to install default settings: %w", err)
	}

	safeDomains, err := allowlist.LoadStatic(cfg.Detection.SafeDomainsFile)
	if err != nil {
		mirror.Close()
		store.Close()
		tracer.Close()
		return nil, err
	}

	client := classifier.New(classifier.Config{
		BaseURL:        cfg.Classifier.URL,
		AttemptTimeout: cfg.Classifier.AttemptTimeout,
		Backoff: resilience.Backoff{
			Initial: cfg.Classifier.BackoffInitial,
			Max:     cfg.Classifier.BackoffMax,
			Jitter:  cfg.Classifier.BackoffJitter,
		},
		RateLimit: cfg.Classifier.RateLimit,
		UserAgent: "PhishGuard/1.0",
	},
		classifier.WithLogger(logger.Component("classifier")),
		classifier.WithMetrics(metrics),
		classifier.WithTracer(tracer),
	)

	hub := ws.NewHub(logger.Component("stream"), metrics)

	coord := coordinator.New(coordinator.Config{
		HoverThreshold: cfg.Detection.HoverThreshold,
		CheckTimeout:   cfg.Detection.CheckTimeout,
		CacheTTL:       cfg.Detection.CacheTTL,
		SkipWindow:     cfg.Detection.SkipWindow,
		WarningPageURL: cfg.Detection.WarningPageURL,
		SafeDomains:    safeDomains,
		PruneInterval:  cfg.Detection.SessionPrune,
	}, client, mirror,
		coordinator.WithLogger(logger.Component("coordinator")),
		coordinator.WithMetrics(metrics),
		coordinator.WithNotifier(hub),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	apihttp.NewHandlers(coord, client, metrics, logger.Component("api")).Register(router)
	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	logger.Info("Server initialized",
		zap.Bool("enabled", mirror.Enabled()),
		zap.Int("safe_domains", len(safeDomains)),
		zap.Int("whitelist", len(mirror.WhitelistHosts())),
	)

	return &Server{
		config:  cfg,
		router:  router,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:      store,
		mirror:     mirror,
		classifier: client,
		coord:      coord,
		hub:        hub,
	}, nil
}

func openStore(ctx context.Context, path string, logger *logging.Logger) (settings.Store, error) {
	if path == "" {
		logger.Info("Settings kept in memory")
		return settings.NewMemoryStore(), nil
	}
	store, err := settings.OpenSQLite(ctx, path, logger.Component("settings"))
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	logger.Info("Settings persisted", zap.String("path", store.Path()))
	return store, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Coordinator returns the detection coordinator.
func (s *Server) Coordinator() *coordinator.Coordinator {
	return s.coord
}

// Run starts the HTTP server and blocks until Shutdown.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then closes the coordinator, the
// stream hub, the settings store and the tracer, and flushes the log.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	s.coord.Close()
	s.hub.Close()
	s.mirror.Close()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("settings store: %w", err))
	}
	s.tracer.Close()

	s.logger.Info("Server stopped")
	s.logger.Close()

	return errors.Join(errs...)
}
