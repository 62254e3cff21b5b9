package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	authhttp "github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/http"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/service"
	authsqlite "github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store/drivers/sqlite"
	cataloghttp "github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/http"
	catalogservice "github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/service"
	catalogstore "github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/store"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/store/drivers/postgres"
	catalogsqlite "github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/store/drivers/sqlite"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/crawler"
	crawlerhttp "github.com/silaprtnw01/webtoon-be-normal-design/internal/crawler/http"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/crawler/madara"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/platform/events"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/platform/tracing"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/cryptox"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	serviceName = "webtoon-api"
)

// Application wires the auth service, the catalog and the crawler into one
// HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	authDB     *authsqlite.Store
	catalogDB  catalogstore.Store
	keyManager *jwtx.KeyManager
	events     events.Publisher
	tracerDown func(context.Context) error

	// Services
	auth     *service.AuthService
	catalog  *catalogservice.Catalog
	sweeper  *service.HousekeepingService
	sweeping bool

	// Crawler, only when enabled
	redis        *redis.Client
	crawler      *crawler.Service
	pool         *crawler.Pool
	housekeeping *crawler.Housekeeping
	poolCancel   context.CancelFunc
	poolDone     chan struct{}

	// HTTP server
	server *http.Server
	router *authhttp.Router
}

// New creates an Application with every dependency initialized. On error
// whatever was already opened is closed again.
func New(cfg Config) (_ *Application, err error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		events:     events.Nop{},
		tracerDown: func(context.Context) error { return nil },
	}
	defer func() {
		if err != nil {
			_ = app.close(context.Background())
		}
	}()

	ctx := context.Background()

	if err := app.initTracing(ctx); err != nil {
		return nil, err
	}
	if err := app.initDatabases(ctx); err != nil {
		return nil, err
	}

	app.keyManager, err = InitAuthKeys(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}

	app.initEvents()
	if err := app.initServices(); err != nil {
		return nil, err
	}
	if err := app.initCrawler(ctx); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.sweeper.Start()
	app.sweeping = true
	app.startCrawler()

	app.logger.Info("webtoon api starting",
		"addr", app.cfg.HTTPAddr,
		"version", BuildVersion,
		"crawler", app.cfg.CrawlerEnabled,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains HTTP requests, stops the crawler and closes every store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down webtoon api...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stopCrawler(ctx)
	if app.sweeping {
		app.sweeper.Stop()
		app.sweeping = false
	}
	err := app.close(ctx)

	app.logger.Info("webtoon api stopped")
	return err
}

func (app *Application) close(ctx context.Context) error {
	var errs []error

	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if err := app.events.Close(); err != nil {
		app.logger.Error("error closing event publisher", "error", err)
	}
	if app.catalogDB != nil {
		errs = append(errs, app.catalogDB.Close())
	}
	if app.authDB != nil {
		errs = append(errs, app.authDB.Close())
	}
	if err := app.tracerDown(ctx); err != nil {
		app.logger.Error("error flushing traces", "error", err)
	}

	err := errors.Join(errs...)
	if err != nil {
		app.logger.Error("error closing stores", "error", err)
	}
	return err
}

func (app *Application) initTracing(ctx context.Context) error {
	shutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: BuildVersion,
		Environment:    app.cfg.Env,
		OTLPEndpoint:   app.cfg.OTelEndpoint,
		SampleRate:     app.cfg.OTelSampling,
		Enabled:        app.cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.tracerDown = shutdown
	return nil
}

// initDatabases opens both stores and applies their migrations. The catalog
// shares the auth database file unless CATALOG_DATABASE_URL points it at
// PostgreSQL.
func (app *Application) initDatabases(ctx context.Context) error {
	dsn := authsqlite.FileDSN(app.cfg.DatabaseFile)

	authDB, err := authsqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.authDB = authDB

	if err := authDB.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply auth migrations: %w", err)
	}

	if app.cfg.CatalogDatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, app.cfg.CatalogDatabaseURL, app.logger)
		if err != nil {
			return fmt.Errorf("failed to connect catalog database: %w", err)
		}
		app.catalogDB = postgres.NewStore(pool, app.logger)
	} else {
		catalogDB, err := catalogsqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize catalog database: %w", err)
		}
		app.catalogDB = catalogDB
	}

	if err := app.catalogDB.ApplyMigrations(ctx); err != nil {
		return fmt.Errorf("failed to apply catalog migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully",
		"catalog_driver", catalogDriver(app.cfg),
	)
	return nil
}

func catalogDriver(cfg Config) string {
	if cfg.CatalogDatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}

func (app *Application) initEvents() {
	if len(app.cfg.KafkaBrokers) == 0 {
		return
	}
	app.events = events.NewKafkaPublisher(events.DefaultKafkaConfig(app.cfg.KafkaBrokers), app.logger)
	app.logger.Info("event publishing enabled",
		"brokers", app.cfg.KafkaBrokers,
		"audit_topic", app.cfg.KafkaAuditTopic,
		"catalog_topic", app.cfg.KafkaCatalogTopic,
	)
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	hasher, err := cryptox.NewHasher(pepper)
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	audit := &service.Auditor{Events: app.events, Topic: app.cfg.KafkaAuditTopic}
	issuer := &service.Issuer{
		Keys:       app.keyManager,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL(),
		RefreshTTL: app.cfg.RefreshTTL(),
	}

	app.auth = &service.AuthService{
		Store:            app.authDB,
		Credentials:      &service.Credentials{Hasher: hasher},
		Issuer:           issuer,
		Ledger:           &service.Ledger{Store: app.authDB, Issuer: issuer, Audit: audit},
		Audit:            audit,
		AllowOAuthSignup: app.cfg.AllowOAuthSignup,
		AdminEmail:       app.cfg.AdminEmail,
	}

	app.sweeper = service.NewHousekeepingService(
		app.authDB,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.catalog = catalogservice.New(app.catalogDB)
	return nil
}

// initCrawler connects to Redis and assembles the worker pool. Nothing is
// started until Run.
func (app *Application) initCrawler(ctx context.Context) error {
	if !app.cfg.CrawlerEnabled {
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	app.redis = redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := app.redis.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	queue := crawler.NewQueue(app.redis, crawler.QueueName)
	parser := madara.New(app.cfg.CrawlerBaseURL)
	tally := &crawler.Tally{}

	app.crawler = &crawler.Service{
		Queue:   queue,
		Parser:  parser,
		Catalog: app.catalog,
		Tally:   tally,
		BaseURL: app.cfg.CrawlerBaseURL,
	}

	pipeline := &crawler.Pipeline{
		Fetcher: crawler.NewFetcher(crawler.DefaultFetcherConfig(crawler.DefaultUserAgent), app.logger),
		Parser:  parser,
		Catalog: app.catalog,
		Queue:   queue,
		Tally:   tally,
		Events:  app.events,
		Topic:   app.cfg.KafkaCatalogTopic,
	}

	app.pool = &crawler.Pool{
		Queue:       queue,
		Handler:     pipeline,
		Limiter:     crawler.NewLimiter(app.cfg.CrawlerRateMax, app.cfg.CrawlerRateWindow),
		Tally:       tally,
		Logger:      app.logger,
		Concurrency: app.cfg.CrawlerConcurrency,
		JobTimeout:  app.cfg.CrawlerJobTimeout,
	}
	app.housekeeping = crawler.NewHousekeeping(queue, app.logger, time.Second)
	app.housekeeping.Lease = app.cfg.CrawlerJobTimeout + crawler.StallGrace

	app.logger.Info("crawler configured",
		"base_url", app.cfg.CrawlerBaseURL,
		"concurrency", app.cfg.CrawlerConcurrency,
		"rate_max", app.cfg.CrawlerRateMax,
		"rate_window", app.cfg.CrawlerRateWindow,
	)
	return nil
}

func (app *Application) startCrawler() {
	if app.pool == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.poolCancel = cancel
	app.poolDone = make(chan struct{})

	app.housekeeping.Start()
	go func() {
		defer close(app.poolDone)
		if err := app.pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Error("crawler pool stopped", "error", err)
		}
	}()
}

// stopCrawler cancels the workers and waits for in-flight jobs until ctx
// expires. Jobs cut off here stay active until their lease runs out and
// housekeeping, in this process or another, requeues them.
func (app *Application) stopCrawler(ctx context.Context) {
	if app.poolCancel == nil {
		return
	}

	app.poolCancel()
	select {
	case <-app.poolDone:
	case <-ctx.Done():
		app.logger.Warn("crawler workers did not stop in time")
	}
	app.housekeeping.Stop()
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	app.router = authhttp.NewRouter(
		app.keyManager,
		BuildVersion,
		app.authDB,
		app.cfg.RateLimits(),
		app.logger,
	)

	app.router.Auth = app.auth
	app.router.Cookies = service.NewCookiePolicy(app.cfg.Production(), app.cfg.CookieDomain, app.cfg.RefreshTTL())
	if app.cfg.GoogleEnabled() {
		app.router.Google = authhttp.NewGoogleConfig(
			app.cfg.GoogleClientID,
			app.cfg.GoogleClientSecret,
			app.cfg.GoogleCallbackURL,
		)
	}

	app.router.Mount(&cataloghttp.Handler{Catalog: app.catalog})
	if app.crawler != nil {
		app.router.Queue = app.crawler.Queue
		app.router.Mount(&crawlerhttp.Handler{Service: app.crawler})
	}

	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              app.cfg.HTTPAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
