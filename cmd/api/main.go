package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"journeymap/api/internal/app"
	"journeymap/api/internal/config"
	"journeymap/api/internal/email"
	"journeymap/api/internal/export"
	"journeymap/api/internal/history"
	"journeymap/api/internal/logging"
	"journeymap/api/internal/oauth"
	"journeymap/api/internal/objectstore"
	"journeymap/api/internal/realtime"
	"journeymap/api/internal/search"
	"journeymap/api/internal/session"
	"journeymap/api/internal/sheets"
	"journeymap/api/internal/store"
	"journeymap/api/internal/telemetry"
)

const purgeInterval = time.Hour

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.ServiceName, cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("tracing setup failed", "error", err)
	}

	db, err := store.Open(ctx, cfg.DatabaseURL, store.Pool{MaxOpen: cfg.DBMaxConns, ConnectWait: cfg.DBConnectWait})
	if err != nil {
		logger.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal("migrations failed", "error", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "versions", applied)
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		logger.Fatal("failed to create history dir", "dir", cfg.HistoryDir, "error", err)
	}

	dataStore := store.NewPostgresStore(db)
	opts := app.Options{
		Logger:   logger,
		History:  history.New(cfg.HistoryDir),
		Exporter: export.NewService(),
		Mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}
	if !opts.Mailer.IsConfigured() {
		logger.Warn("SMTP not configured, verification and reset tokens are returned in responses")
	}

	// Redis backs sessions, presence, fan-out and the sheets cache when set.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisClient, err = session.Dial(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connection failed", "error", err)
		}
		defer redisClient.Close()
		sessions := session.NewRedisStoreWithClient(redisClient)
		opts.Sessions = sessions
		opts.Redis = sessions
		logger.Info("using redis for sessions and realtime")
	} else {
		logger.Info("using postgres for sessions, realtime limited to this instance")
	}

	var broker realtime.Broker = realtime.NewLocalBroker()
	var presence realtime.PresenceStore = realtime.NewMemoryPresence()
	if redisClient != nil {
		broker = realtime.NewRedisBroker(redisClient, logger)
		presence = realtime.NewRedisPresence(redisClient)
	}
	hub := realtime.NewHub(broker, presence, cfg.CORSOrigin, logger)
	go hub.Run(ctx)
	opts.Hub = hub

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db), logger)
	go searchService.ReindexAllFromPG(ctx)
	opts.Search = searchService

	objects, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	})
	switch {
	case errors.Is(err, objectstore.ErrNotConfigured):
		logger.Warn("object storage not configured, file uploads disabled")
	case err != nil:
		logger.Fatal("object storage setup failed", "error", err)
	default:
		if err := objects.EnsureBucket(ctx); err != nil {
			logger.Fatal("object storage bucket check failed", "bucket", cfg.S3Bucket, "error", err)
		}
		opts.Objects = objects
	}

	google, err := oauth.NewGoogleProvider(ctx, oauth.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		JWKSURL:      cfg.GoogleJWKSURL,
	}, logger)
	switch {
	case errors.Is(err, oauth.ErrNotConfigured):
		logger.Warn("google sign-in not configured")
	case err != nil:
		logger.Error("google sign-in disabled", "error", err)
	default:
		opts.Google = google
	}

	var fetcher sheets.Fetcher
	sheetsClient, err := sheets.NewGoogleClient(ctx, sheets.ClientConfig{
		APIKey:          cfg.SheetsAPIKey,
		CredentialsFile: cfg.SheetsCredentialsFile,
		Endpoint:        cfg.SheetsEndpoint,
	})
	switch {
	case errors.Is(err, sheets.ErrNotConfigured):
		logger.Warn("google sheets not configured, live values disabled")
	case err != nil:
		logger.Error("google sheets disabled", "error", err)
	default:
		fetcher = sheetsClient
	}
	syncer := sheets.NewSyncer(dataStore, fetcher, sheets.NewCache(redisClient))
	opts.Sheets = syncer

	service := app.New(cfg, dataStore, opts)
	if syncer.Configured() {
		poller := sheets.NewPoller(syncer, dataStore, cfg.SheetsPollInterval, service.NotifySheetsValue, logger)
		go poller.Run(ctx)
	}
	go purgeExpired(ctx, dataStore, logger)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin).WithTracer(tracer)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("journey map API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}
}

// purgeExpired drops expired refresh sessions and revoked tokens from Postgres.
func purgeExpired(ctx context.Context, st *store.PostgresStore, logger *logging.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.PurgeExpired(ctx); err != nil {
				logger.Error("purge expired sessions failed", "error", err)
			}
		}
	}
}
