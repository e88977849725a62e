// cmd/query-gateway/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"catalog-gateway/internal/catalog"
	"catalog-gateway/internal/common/auth"
	awsclients "catalog-gateway/internal/common/aws"
	"catalog-gateway/internal/common/camunda"
	"catalog-gateway/internal/common/config"
	"catalog-gateway/internal/common/database"
	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/common/observability"
	"catalog-gateway/internal/gateway"
	"catalog-gateway/internal/geofeature"
	"catalog-gateway/internal/identity"
	"catalog-gateway/internal/mail"
	"catalog-gateway/internal/notification"
	"catalog-gateway/internal/workspace"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting query gateway...",
		zap.String("version", cfg.App.Version),
		zap.String("basePath", cfg.HTTP.BasePath),
	)

	obs := observability.New(cfg.App.Name, cfg.App.Version, log)
	defer obs.Shutdown()
	if cfg.Tracing.Enabled {
		if err := obs.EnableTracing(cfg.App.Name, cfg.App.Version, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio); err != nil {
			zapLog.Warn("tracing disabled", zap.Error(err))
		}
	}

	ctx := context.Background()
	var checkers []database.Checker

	// --- Elasticsearch (catalog, workspaces, gazetteer) ---
	var es *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Catalog.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	checkers = append(checkers, es)
	zapLog.Info("Elasticsearch connected successfully")

	engine := catalog.NewElasticEngine(es.Client, config.GetDuration(cfg.Catalog.Timeout), cfg.Catalog.MaxPageSize, log)

	// --- Notification pipeline ---
	var observer gateway.Observer
	var pipeline *notification.Pipeline
	if cfg.Notifications.Enabled {
		var closers []func()
		pipeline, checkers, closers = buildPipeline(ctx, cfg, engine, log, zapLog, obs, checkers)
		for _, c := range closers {
			defer c()
		}
		observer = pipeline
	} else {
		zapLog.Info("Workspace notifications disabled")
	}

	service := gateway.NewService(engine, observer, cfg.Catalog.DefaultSources, log)
	features := geofeature.NewService(es.Client, cfg.Catalog.FeatureIndex, config.GetDuration(cfg.Catalog.Timeout), log)
	server := gateway.NewServer(service, features, obs, log, gateway.Options{
		BasePath:       cfg.HTTP.BasePath,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		IdentityHeader: cfg.Auth.IdentityHeader,
		Checkers:       checkers,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      server.Router(),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if pipeline != nil {
		if err := pipeline.Close(shutdownCtx); err != nil {
			zapLog.Error("Notification queue not drained", zap.Error(err))
		}
	}

	zapLog.Info("Query gateway stopped gracefully")
}

// buildPipeline wires lookup, identity, mail and audit for the notification
// pipeline. It returns the readiness checkers extended with the stores it
// opened and the close functions to defer.
func buildPipeline(
	ctx context.Context,
	cfg *config.Config,
	engine catalog.Engine,
	log logger.Logger,
	zapLog *zap.Logger,
	obs *observability.Observability,
	checkers []database.Checker,
) (*notification.Pipeline, []database.Checker, []func()) {
	var closers []func()
	n := cfg.Notifications

	// --- Workspace lookup, optionally cached in Redis ---
	var lookupOpts []workspace.Option
	if n.CacheTTL > 0 {
		redis := database.NewRedis(cfg.Database.Redis)
		if err := redis.Ping(ctx); err != nil {
			zapLog.Warn("Redis unavailable, workspace lookups will not be cached", zap.Error(err))
		}
		cache := workspace.NewRedisCache(redis.Client, config.GetDuration(n.CacheTTL)).
			WithNotFoundTTL(config.GetDuration(n.NotFoundCacheTTL))
		lookupOpts = append(lookupOpts, workspace.WithCache(cache))
		checkers = append(checkers, redis)
		closers = append(closers, func() { _ = redis.Close() })
	}
	lookup := workspace.NewLookup(engine, cfg.Catalog.WorkspaceIndex, config.GetDuration(cfg.Catalog.Timeout), log, lookupOpts...)

	// --- Caller identity ---
	var resolver identity.Resolver
	switch cfg.Auth.Mode {
	case config.AuthModeHeader:
		zapLog.Warn("Trusting caller identity header", zap.String("header", cfg.Auth.IdentityHeader))
		resolver = identity.HeaderResolver{}
	default:
		kc := auth.NewKeycloakClient(
			cfg.Auth.Keycloak.URL,
			cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID,
			cfg.Auth.Keycloak.ClientSecret,
		)
		resolver = identity.NewKeycloakResolver(kc, cfg.Auth.IdentityClaim, config.GetDuration(cfg.Auth.CacheTTL))
	}

	// --- Mail transport ---
	templates := mail.Templates{Subject: n.SubjectTemplate, Body: n.BodyTemplate, BaseURL: n.BaseURL}
	var mailers mail.Multi
	var aws *awsclients.Clients
	if n.Driver == config.DriverSES || cfg.Integrations.AWS.SNS.Enabled {
		var err error
		aws, err = awsclients.NewClients(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws client init failed", zap.Error(err))
		}
	}

	switch n.Driver {
	case config.DriverSES:
		mailers = append(mailers, mail.NewSESMailer(aws.SES, n.FromEmail, templates, log))
	case config.DriverCamunda:
		var zeebe *camunda.Client
		err := retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		mailers = append(mailers, mail.NewCamundaMailer(zeebe, cfg.Camunda.MessageName, templates))
		checkers = append(checkers, zeebe)
		closers = append(closers, func() { _ = zeebe.Close() })
	default:
		mailers = append(mailers, mail.NewLogMailer(templates, log))
	}
	if cfg.Integrations.AWS.SNS.Enabled {
		mailers = append(mailers, mail.NewSNSPublisher(aws.SNS, cfg.Integrations.AWS.SNS.TopicARN))
	}

	var mailer mail.Mailer = mailers
	if len(mailers) == 1 {
		mailer = mailers[0]
	}
	dispatcher := notification.NewDispatcher(mailer, config.GetDuration(n.MailTimeout), log)

	opts := []notification.PipelineOption{notification.WithObservability(obs)}
	if n.Async {
		opts = append(opts, notification.WithAsync(n.Workers, n.QueueSize))
	}

	// --- Decision audit ---
	if n.AuditEnabled {
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		auditor := notification.NewPostgresAuditor(pg.DB)
		if err := auditor.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("audit schema setup failed", zap.Error(err))
		}
		opts = append(opts, notification.WithAuditor(auditor))
		checkers = append(checkers, pg)
		closers = append(closers, func() { _ = pg.Close() })
	}

	zapLog.Info("Workspace notifications enabled",
		zap.String("driver", n.Driver),
		zap.Bool("async", n.Async),
		zap.Bool("sns", cfg.Integrations.AWS.SNS.Enabled),
		zap.Bool("audit", n.AuditEnabled),
	)
	return notification.NewPipeline(lookup, resolver, dispatcher, config.GetDuration(n.PipelineTimeout), log, opts...), checkers, closers
}
