// Package server wires the search engine's dependencies and runs the HTTP
// service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ozemskikh/SearchEngine/internal/api"
	"github.com/ozemskikh/SearchEngine/internal/campaign"
	"github.com/ozemskikh/SearchEngine/internal/clock/system"
	"github.com/ozemskikh/SearchEngine/internal/config"
	"github.com/ozemskikh/SearchEngine/internal/crawler"
	"github.com/ozemskikh/SearchEngine/internal/engine"
	collyfetcher "github.com/ozemskikh/SearchEngine/internal/fetcher/colly"
	"github.com/ozemskikh/SearchEngine/internal/hash/sha256"
	"github.com/ozemskikh/SearchEngine/internal/indexer"
	"github.com/ozemskikh/SearchEngine/internal/logging"
	"github.com/ozemskikh/SearchEngine/internal/morphology"
	"github.com/ozemskikh/SearchEngine/internal/orchestrator"
	"github.com/ozemskikh/SearchEngine/internal/policy/ratelimit"
	memorypublisher "github.com/ozemskikh/SearchEngine/internal/publisher/memory"
	gcppublisher "github.com/ozemskikh/SearchEngine/internal/publisher/pubsub"
	"github.com/ozemskikh/SearchEngine/internal/search"
	"github.com/ozemskikh/SearchEngine/internal/stats"
	gcsstorage "github.com/ozemskikh/SearchEngine/internal/storage/gcs"
	localstorage "github.com/ozemskikh/SearchEngine/internal/storage/local"
	memorystorage "github.com/ozemskikh/SearchEngine/internal/storage/memory"
	pgstore "github.com/ozemskikh/SearchEngine/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      engine.Store
	controller *campaign.Controller
	searcher   *search.Searcher
	reporter   *stats.Service
	apiServer  *api.Server
	gcsArchive *gcsstorage.BlobStore
	publisher  *gcppublisher.Publisher
	closeOnce  sync.Once
	closeErr   error
}

// Controller exposes the campaign controller for the CLI.
func (a *App) Controller() *campaign.Controller {
	return a.controller
}

// Index runs one campaign to completion and reports the resulting
// statistics.
func (a *App) Index(ctx context.Context) (stats.Report, error) {
	if err := a.controller.Start(ctx); err != nil {
		return stats.Report{}, fmt.Errorf("start indexing: %w", err)
	}
	if err := a.controller.Wait(ctx); err != nil {
		return stats.Report{}, err
	}
	report, err := a.reporter.Report(context.WithoutCancel(ctx))
	if err != nil {
		return stats.Report{}, fmt.Errorf("build statistics: %w", err)
	}
	return report, nil
}

// Search answers one query against the indexed sites.
func (a *App) Search(ctx context.Context, q search.Query) (search.Response, error) {
	resp, err := a.searcher.Search(ctx, q)
	if err != nil {
		return search.Response{}, fmt.Errorf("search: %w", err)
	}
	return resp, nil
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler returns the HTTP handler tree.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close stops any campaign and releases infrastructure. Later calls return
// the first result.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeErr = a.close(ctx)
	})
	return a.closeErr
}

func (a *App) close(ctx context.Context) error {
	var firstErr error
	if a.controller != nil {
		if err := a.controller.Close(ctx); err != nil {
			a.logger.Warn("campaign shutdown failed", zap.Error(err))
			firstErr = err
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if a.gcsArchive != nil {
		if err := a.gcsArchive.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return firstErr
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger creates the application's dependencies with a caller
// supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Int("sites", len(cfg.Indexing.Sites)),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("archive", cfg.Archive.Backend),
	)
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
		}
	}()

	if app.store, err = setupStore(ctx, app); err != nil {
		return nil, err
	}
	archive, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	clock := system.New()
	analyzer := morphology.New()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Indexing.UserAgent,
		Referrer:  cfg.Indexing.Referrer,
		Timeout:   cfg.Indexing.FetchTimeout(),
	})
	logger.Info("using colly fetcher", zap.String("user_agent", cfg.Indexing.UserAgent))

	var limiter engine.Limiter
	if cfg.Indexing.RequestsPerSecond > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			RPS:   cfg.Indexing.RequestsPerSecond,
			Burst: cfg.Indexing.Burst,
		})
		logger.Info("rate limiter enabled",
			zap.Float64("rps", cfg.Indexing.RequestsPerSecond),
			zap.Int("burst", cfg.Indexing.Burst),
		)
	}

	siteCrawler := crawler.New(fetcher, limiter, crawler.Config{Delay: cfg.Indexing.FetchDelay()}, logger.Named("crawler"))
	pageIndexer := indexer.New(app.store, analyzer, logger.Named("indexer"))

	var namer orchestrator.Namer
	if archive != nil {
		namer = sha256.New(cfg.Archive.Prefix)
	}
	runner := orchestrator.New(
		app.store,
		siteCrawler,
		pageIndexer,
		archive,
		namer,
		publisher,
		clock,
		orchestrator.Config{PoolSize: cfg.Indexing.PoolSize},
		logger.Named("orchestrator"),
	)

	app.searcher = search.New(app.store, analyzer, search.Config{
		MaxCoverage:      cfg.Search.MaxLemmaCoverage,
		DefaultLimit:     cfg.Search.DefaultLimit,
		SnippetFragments: cfg.Search.SnippetFragments,
	}, logger.Named("search"))

	app.controller, err = campaign.New(
		app.store,
		runner,
		fetcher,
		pageIndexer,
		app.searcher,
		clock,
		cfg.Indexing.Sites,
		logger.Named("campaign"),
	)
	if err != nil {
		return nil, fmt.Errorf("campaign init failed: %w", err)
	}
	if err = app.controller.RecoverInterrupted(ctx); err != nil {
		return nil, fmt.Errorf("recover interrupted sites: %w", err)
	}

	app.reporter = stats.New(app.store, app.controller.Running)
	app.apiServer = api.NewServer(app.controller, app.searcher, app.reporter, logger.Named("api"))
	return app, nil
}

func setupStore(ctx context.Context, app *App) (engine.Store, error) {
	if app.cfg.Storage.Backend != config.BackendPostgres {
		app.logger.Info("using in-memory store")
		return memorystorage.NewStore(), nil
	}
	store, err := pgstore.New(ctx, pgstore.Config{
		DSN:             app.cfg.Database.DSN,
		MaxConns:        app.cfg.Database.MaxConns,
		MinConns:        app.cfg.Database.MinConns,
		MaxConnLifetime: app.cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store init failed: %w", err)
	}
	app.logger.Info("postgres store initialized")
	return store, nil
}

func setupArchive(ctx context.Context, app *App) (engine.BlobStore, error) {
	switch app.cfg.Archive.Backend {
	case config.BackendGCS:
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: app.cfg.Archive.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		app.gcsArchive = store
		app.logger.Info("using GCS page archive", zap.String("bucket", app.cfg.Archive.Bucket))
		return store, nil
	case config.BackendLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		app.logger.Info("using local page archive", zap.String("path", app.cfg.Archive.BaseDir))
		return store, nil
	case config.BackendMemory:
		app.logger.Info("using in-memory page archive")
		return memorystorage.NewBlobStore(), nil
	default:
		app.logger.Debug("page archive disabled")
		return nil, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (engine.Publisher, error) {
	if !app.cfg.PubSub.Enabled() {
		app.logger.Info("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(app.logger.Named("events")), nil
	}
	publisher, err := gcppublisher.New(ctx, gcppublisher.Config{
		ProjectID: app.cfg.PubSub.ProjectID,
		TopicName: app.cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.publisher = publisher
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return publisher, nil
}
