// Package main is the entrypoint for the link-in-bio API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/franciscoquinteros/landing-anto/internal/auth"
	"github.com/franciscoquinteros/landing-anto/internal/background"
	"github.com/franciscoquinteros/landing-anto/internal/config"
	"github.com/franciscoquinteros/landing-anto/internal/directory"
	"github.com/franciscoquinteros/landing-anto/internal/docstore"
	"github.com/franciscoquinteros/landing-anto/internal/handler"
	"github.com/franciscoquinteros/landing-anto/internal/metrics"
	"github.com/franciscoquinteros/landing-anto/internal/middleware"
	"github.com/franciscoquinteros/landing-anto/internal/notify"
	"github.com/franciscoquinteros/landing-anto/internal/server"
	"github.com/franciscoquinteros/landing-anto/internal/service"
	"github.com/franciscoquinteros/landing-anto/internal/store"
	"github.com/franciscoquinteros/landing-anto/internal/tracking"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	backend, err := store.Open(ctx, cfg, logger)
	if err != nil {
		secret := storeURL(cfg)
		logger.Error("failed to open store",
			slog.String("backend", cfg.StoreBackend),
			slog.String("error", sanitizeError(err, secret)),
			slog.String("url", redactURL(secret)),
		)
		os.Exit(1)
	}
	logger.Info("store opened", "backend", cfg.StoreBackend)

	docs, err := docstore.NewFileStore(cfg.DataDir, logger.With("component", "docstore"))
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}

	var recorder metrics.Recorder = metrics.NewNoop()
	var prom *metrics.PrometheusRecorder
	if cfg.MetricsEnabled {
		prom = metrics.NewPrometheus()
		recorder = prom
	}

	var static directory.Source
	if cfg.StaticFallbackURL != "" {
		httpSource := directory.NewHTTPSource(cfg.StaticFallbackURL, cfg.SiteDataPath, nil)
		logger.Info("static fallback over http", "url", redactURL(httpSource.URL()))
		static = httpSource
	} else {
		static = directory.NewDocumentSource(docs, cfg.SiteDataPath)
	}
	loader := directory.NewLoader(backend.Store(store.NamespaceSiteData), static, recorder, logger.With("component", "directory"))

	runner := background.NewRunner(logger)

	var notifier tracking.Notifier
	var natsConn interface{ Drain() error }
	if cfg.NATSURL != "" {
		conn, err := notify.Connect(cfg.NATSURL, "linkbio-api")
		if err != nil {
			logger.Error("failed to connect to NATS",
				slog.String("error", sanitizeError(err, cfg.NATSURL)),
				slog.String("nats_url", redactURL(cfg.NATSURL)),
			)
			os.Exit(1)
		}
		notifier = notify.NewNATSNotifier(conn, cfg.NATSSubject)
		natsConn = conn
		logger.Info("click notifications enabled", "subject", cfg.NATSSubject)
	}

	tracker := tracking.NewService(
		loader,
		backend.Store(store.NamespaceClicks),
		backend.Store(store.NamespaceEvents),
		runner,
		notifier,
		recorder,
		logger.With("component", "tracking"),
	)

	authenticator, err := auth.NewAuthenticator(cfg.AdminPassword, auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL))
	if err != nil {
		logger.Error("failed to initialise authentication", "error", err)
		os.Exit(1)
	}

	siteService := service.NewSiteService(docs, loader, cfg.SiteDataPath, recorder, logger)
	analyticsService := service.NewAnalyticsService(
		backend.Store(store.NamespaceClicks),
		backend.Store(store.NamespaceEvents),
		logger,
	)

	handlers := routes{
		base:      handler.New(),
		health:    handler.NewHealthHandler(map[string]handler.HealthChecker{"store": backend}),
		redirect:  handler.NewRedirectHandler(tracker, cfg.GeoCountryHeader, logger),
		auth:      handler.NewAuthHandler(authenticator, logger),
		site:      handler.NewSiteHandler(loader, siteService, logger),
		analytics: handler.NewAnalyticsHandler(analyticsService, logger),
		verifier:  authenticator,
		dataDir:   docs.Root(),
	}
	if prom != nil {
		handlers.metrics = prom.Handler()
	}

	r := setupRouter(handlers, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// LIFO: pending clicks drain first, then NATS, then the store closes.
	srv.OnShutdown("store", func(ctx context.Context) error {
		return backend.Close()
	})
	if natsConn != nil {
		srv.OnShutdown("nats", func(ctx context.Context) error {
			return natsConn.Drain()
		})
	}
	srv.OnShutdown("click-recorder", runner.Wait)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"store", cfg.StoreBackend,
		"data_dir", docs.Root(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routes collects the handlers mounted by setupRouter.
type routes struct {
	base      *handler.Handler
	health    *handler.HealthHandler
	redirect  *handler.RedirectHandler
	auth      *handler.AuthHandler
	site      *handler.SiteHandler
	analytics *handler.AnalyticsHandler
	verifier  middleware.TokenVerifier
	metrics   http.Handler
	dataDir   string
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))

	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	// Tracked redirects
	r.Get("/go/{id}", h.redirect.Go)
	r.Get("/api/track", h.redirect.Track)

	// Public site document and uploaded images
	r.Get("/api/site-data", h.site.SiteData)
	if h.dataDir != "" {
		r.Handle("/data/*", http.FileServer(http.Dir(h.dataDir)))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

		r.Post("/api/auth", h.auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOwner(h.verifier, logger))

			r.Get("/api/metrics", h.analytics.Metrics)
			r.Get("/api/events", h.analytics.Events)
			r.Post("/api/save-data", h.site.Save)
			r.Post("/api/upload-image", h.site.UploadImage)
			r.Post("/api/upload-link-image", h.site.UploadLinkImage)
		})
	})

	r.NotFound(h.base.NotFound)
	r.MethodNotAllowed(h.base.MethodNotAllowed)

	return r
}

// storeURL returns the connection string of the configured store backend.
func storeURL(cfg *config.Config) string {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return cfg.RedisURL
	case config.BackendPostgres:
		return cfg.DatabaseURL
	case config.BackendSQLite:
		return cfg.SQLiteURL
	default:
		return ""
	}
}

var passwordPattern = regexp.MustCompile(`(?i)(password|authToken)=[^\s&]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	query := parsed.Query()
	for _, key := range []string{"password", "authToken"} {
		if query.Has(key) {
			query.Set(key, "redacted")
		}
	}
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "$1=redacted")
}
