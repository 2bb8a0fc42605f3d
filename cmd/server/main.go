// main wires configuration, storage, the model client, and the HTTP surface.
// All dependencies are constructed here and passed down; nothing below main
// owns a global connection.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"docextract/internal/docai/openai"
	"docextract/internal/extraction"
	extractionhandler "docextract/internal/extraction/handler"
	extractionmetrics "docextract/internal/extraction/metrics"
	"docextract/internal/jwttoken"
	"docextract/internal/platform/config"
	"docextract/internal/platform/httpserver"
	"docextract/internal/platform/logger"
	platformmetrics "docextract/internal/platform/metrics"
	platformredis "docextract/internal/platform/redis"
	schemahandler "docextract/internal/schema/handler"
	schemametrics "docextract/internal/schema/metrics"
	schemaservice "docextract/internal/schema/service"
	schemastore "docextract/internal/schema/store"
	httptransport "docextract/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "", "optional path to a JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	var checks []httptransport.HealthCheck

	var store schemaservice.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = db.Close()
		}()
		db.SetMaxOpenConns(25)
		db.SetConnMaxIdleTime(5 * time.Minute)

		pg := schemastore.NewPostgres(db)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Error("migrate schema store", "error", err)
			os.Exit(1)
		}
		store = pg
		checks = append(checks, httptransport.HealthCheck{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return db.PingContext(ctx) },
		})
		log.Info("using postgres schema store")
	} else {
		store = schemastore.NewInMemory()
		log.Warn("DOCEXTRACT_DATABASE_URL not set, using in-memory schema store")
	}

	schemaOpts := []schemaservice.Option{
		schemaservice.WithLogger(log),
		schemaservice.WithMetrics(schemametrics.New()),
	}
	extractionOpts := []extraction.Option{
		extraction.WithLogger(log),
		extraction.WithMetrics(extractionmetrics.New()),
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
		cache := extraction.NewRedisCache(redisClient.Client, cfg.RoutingCacheTTL(), log)
		schemaOpts = append(schemaOpts, schemaservice.WithRoutingCache(cache))
		extractionOpts = append(extractionOpts, extraction.WithCache(cache))
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: redisClient.Health})
		log.Info("routing cache enabled", "ttl", cfg.RoutingCacheTTL())
	}

	schemas := schemaservice.New(store, schemaOpts...)

	model := openai.NewClient(openai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
	}, log)

	extractions := extraction.New(model, model, model, store, schemas, extraction.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		ClassifyTimeout:     cfg.ClassifyTimeout(),
		GenerateTimeout:     cfg.GenerateTimeout(),
		ExtractTimeout:      cfg.ExtractTimeout(),
	}, extractionOpts...)

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)

	router := httptransport.NewRouter(log, platformmetrics.New(), checks,
		extractionhandler.New(extractions, cfg.MaxUploadBytes, log),
		schemahandler.New(schemas, log, jwtService),
	)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting docextract", "addr", cfg.Addr, "model", cfg.OpenAIModel)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
