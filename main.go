package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"propwise/api"
	"propwise/config"
	"propwise/httputil"
	"propwise/logging"
	"propwise/models"
	"propwise/notify"
	"propwise/scheduler"
	"propwise/services"
	"propwise/storage"
	"propwise/workers"
)

var (
	scanNow  = flag.Bool("scan", false, "Run one alert scan and exit")
	serve    = flag.Bool("serve", true, "Serve the HTTP API")
	resetOps = flag.Bool("reset-ops", false, "Clear the operational SQLite database and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logFile, err := logging.Setup(logging.Options{
		Path:    cfg.LogPath,
		Level:   cfg.LogLevel,
		Env:     cfg.Env,
		Service: "propwise",
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not set up file logging")
	} else if logFile != nil {
		defer logFile.Close()
	}

	log.Info().Msg("starting propwise")

	clients := httputil.NewClients(30 * time.Second)

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pgStore.Close()
	log.Info().Str("dsn", maskConnectionString(cfg.DatabaseURL)).Msg("connected to postgres")

	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate postgres")
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open sqlite")
	}
	defer sqliteStore.Close()
	log.Info().Str("path", cfg.DBPath).Msg("sqlite database opened")

	if *resetOps {
		if err := sqliteStore.ResetAllData(); err != nil {
			log.Fatal().Err(err).Msg("failed to reset operational data")
		}
		log.Info().Msg("operational data cleared")
		return
	}

	// Redis is optional: without it there is no shared lock, no trend cache
	// and no comparison list.
	var kv services.KV
	var redisStore *storage.RedisStore
	if cfg.Redis.Addr != "" {
		redisStore, err = storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without it")
		} else {
			defer redisStore.Close()
			kv = redisStore
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
		}
	}

	composer := notify.Composer{Domain: cfg.Site.Domain, Currency: cfg.Site.Currency}
	mailer := notify.NewMailer(notify.MailConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.User,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
	dispatcher := notify.Multi{notify.NewInApp(pgStore), mailer}

	scanner := services.NewAlertScanner(pgStore, dispatcher, composer)
	alertWorker := workers.NewAlertWorker(scanner, sqliteStore)

	sched := scheduler.New(cfg.Scheduler, alertWorker, sqliteStore)
	if redisStore != nil {
		sched.SetLocker(redisStore)
	}

	if *scanNow {
		if err := runScanOnce(ctx, sched); err != nil {
			log.Fatal().Err(err).Msg("alert scan failed")
		}
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	featuredWorker := workers.NewFeaturedWorker(pgStore, sqliteStore)
	featuredWorker.SetLogger(func(level models.LogLevel, source, message string) {
		if err := sqliteStore.Log(nil, level, message, source); err != nil {
			log.Warn().Err(err).Msg("could not write scan log")
		}
	})
	go featuredWorker.Run(ctx, cfg.Scheduler.FeaturedBatch, cfg.Scheduler.FeaturedInterval)
	log.Info().Dur("interval", cfg.Scheduler.FeaturedInterval).Msg("featured worker started")

	sched.SetWorkers(featuredWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	var srv *http.Server
	if *serve {
		srv = startServer(cfg, clients, pgStore, kv)
	}

	log.Info().Msg("daemon running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
		done()
	}
	cancel()
	sched.Stop()
	log.Info().Msg("goodbye")
}

type alertTrigger interface {
	TriggerNow(ctx context.Context) (*services.ScanResult, error)
}

// runScanOnce runs a single alert pass under the same lock as scheduled passes.
func runScanOnce(ctx context.Context, sched alertTrigger) error {
	log.Info().Msg("running alert scan")
	result, err := sched.TriggerNow(ctx)
	if err != nil {
		return err
	}
	if result == nil {
		log.Info().Msg("alert scan skipped: another instance is scanning")
		return nil
	}
	log.Info().Int("checked", result.Checked).Int("sent", result.Sent).Int("errors", result.Errors).Msg("alert scan complete")
	return nil
}

func startServer(cfg *config.Config, clients *httputil.Clients, pgStore *storage.PostgresStore, kv services.KV) *http.Server {
	svc := api.Services{
		Listings:      services.NewListingService(pgStore),
		SavedSearches: services.NewSavedSearchService(pgStore),
		Insights:      services.NewInsightsService(pgStore, kv, cfg.Amenities, cfg.Site.Currency),
		Notifications: services.NewNotificationService(pgStore),
		Describer: services.NewDescriptionService(func() (services.TextGenerator, error) {
			if cfg.AI.GeminiAPIKey == "" {
				return nil, errors.New("GEMINI_API_KEY is not set")
			}
			return services.NewGeminiClient(clients.API, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel), nil
		}, cfg.Site.Currency),
		Health: pgStore.Ping,
	}
	if kv != nil {
		svc.Compare = services.NewCompareService(pgStore, kv)
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewServer(svc).Handler(cfg.HTTP.AllowedOrigins),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	return srv
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
