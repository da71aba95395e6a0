package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/govsearch/govsearch/internal/answer"
	"github.com/govsearch/govsearch/internal/api"
	"github.com/govsearch/govsearch/internal/assistant"
	"github.com/govsearch/govsearch/internal/auth"
	"github.com/govsearch/govsearch/internal/config"
	"github.com/govsearch/govsearch/internal/export"
	"github.com/govsearch/govsearch/internal/llm"
	"github.com/govsearch/govsearch/internal/maintenance"
	"github.com/govsearch/govsearch/internal/nl2sql"
	"github.com/govsearch/govsearch/internal/observability"
	"github.com/govsearch/govsearch/internal/query/sqldb"
	"github.com/govsearch/govsearch/internal/schema"
	"github.com/govsearch/govsearch/internal/session"
	sessionpostgres "github.com/govsearch/govsearch/internal/session/postgres"
	sessionredis "github.com/govsearch/govsearch/internal/session/redis"
	s3store "github.com/govsearch/govsearch/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("govsearch-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queryDB, err := sqldb.Open(ctx, sqldb.DBConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		DatasetTable:    cfg.Database.DatasetTable,
		DatasetFiles:    cfg.Database.DatasetFiles,
	})
	if err != nil {
		logger.Error("failed to open query db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = queryDB.Close() }()
	engine := sqldb.NewEngine(queryDB, cfg.Database.StatementTimeout)

	schemaProvider, err := openSchema(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load schema descriptor", slog.Any("error", err))
		os.Exit(1)
	}

	completer, err := llm.NewOpenAIClient(llm.Config{
		Provider:    cfg.AI.Provider,
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		APIVersion:  cfg.AI.APIVersion,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}
	translator, err := nl2sql.NewLLMTranslator(completer, completer.Provider())
	if err != nil {
		logger.Error("failed to initialize sql translator", slog.Any("error", err))
		os.Exit(1)
	}
	generator, err := answer.NewLLMGenerator(completer)
	if err != nil {
		logger.Error("failed to initialize answer generator", slog.Any("error", err))
		os.Exit(1)
	}

	store, storeCheck, closeStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open session store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	exporter, err := openExporter(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize exporter", slog.Any("error", err))
		os.Exit(1)
	}

	if expirer, ok := store.(maintenance.Expirer); ok {
		retention := &maintenance.Service{
			Sessions: expirer,
			Config:   maintenance.Config{SessionTTL: cfg.Session.TTL},
			Logger:   logger,
		}
		if exporter != nil {
			retention.Exports = exporter
		}
		go func() { _ = retention.Run(ctx) }()
	}

	service := &assistant.Service{
		Sessions:   session.NewManager(store),
		Schema:     schemaProvider,
		Translator: translator,
		Engine:     engine,
		Answers:    generator,
		Exporter:   exporter,
		RowLimit:   cfg.Database.RowLimit,
		Logger:     logger,
	}

	deps := api.Dependencies{
		Logger:            logger,
		Assistant:         service,
		Schema:            schemaProvider,
		Readiness:         api.CombineReadinessChecks(engine.HealthCheck, storeCheck),
		DependencyTimeout: time.Second,
		TurnTimeout:       cfg.HTTP.WriteTimeout,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("db_driver", cfg.Database.Driver),
			slog.String("session_backend", cfg.Session.Backend),
			slog.Bool("export_enabled", exporter != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openSchema(ctx context.Context, cfg config.Config, logger *slog.Logger) (schema.Provider, error) {
	if cfg.Schema.Path == "" || !cfg.Schema.Watch {
		descriptor, err := schema.Load(cfg.Schema.Path)
		if err != nil {
			return nil, err
		}
		return schema.NewStatic(descriptor), nil
	}
	watcher, err := schema.NewWatcher(cfg.Schema.Path, logger)
	if err != nil {
		return nil, err
	}
	go func() {
		defer func() { _ = watcher.Close() }()
		watcher.Run(ctx)
	}()
	return watcher, nil
}

func openSessionStore(ctx context.Context, cfg config.Config) (session.Store, api.ReadinessCheck, func(), error) {
	switch cfg.Session.Backend {
	case "postgres":
		// Never the query pool: generated SQL must not reach session rows.
		db, err := sqldb.Open(ctx, sqldb.DBConfig{Driver: sqldb.DriverPostgres, DSN: cfg.Session.PostgresDSN})
		if err != nil {
			return nil, nil, nil, err
		}
		store := sessionpostgres.NewStore(db)
		return store, store.HealthCheck, func() { _ = db.Close() }, nil
	case "redis":
		store, err := sessionredis.New(sessionredis.Config{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
			TTL:      cfg.Session.TTL,
			Prefix:   cfg.Session.KeyPrefix,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store.HealthCheck, func() { _ = store.Close() }, nil
	default:
		return session.NewMemoryStore(), nil, func() {}, nil
	}
}

func openExporter(ctx context.Context, cfg config.Config) (*export.Exporter, error) {
	if !cfg.Export.Enabled {
		return nil, nil
	}
	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.Export.ObjectStore.Endpoint,
		Region:           cfg.Export.ObjectStore.Region,
		Bucket:           cfg.Export.ObjectStore.Bucket,
		AccessKeyID:      cfg.Export.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.Export.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.Export.ObjectStore.UseSSL,
		Prefix:           cfg.Export.ObjectStore.Prefix,
		AutoCreateBucket: cfg.Export.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return nil, err
	}
	return export.NewExporter(objectStore, export.Options{
		Format:        export.Format(cfg.Export.Format),
		Threshold:     cfg.Export.Threshold,
		PresignExpiry: cfg.Export.PresignExpiry,
	})
}
