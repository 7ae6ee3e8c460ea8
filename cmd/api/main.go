package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/retail_console/internal/authz"
	"github.com/Skotchmaster/retail_console/internal/cache"
	"github.com/Skotchmaster/retail_console/internal/credentials"
	"github.com/Skotchmaster/retail_console/internal/events"
	"github.com/Skotchmaster/retail_console/internal/httpserver"
	"github.com/Skotchmaster/retail_console/internal/metrics"
	"github.com/Skotchmaster/retail_console/internal/middleware"
	"github.com/Skotchmaster/retail_console/internal/notify"
	"github.com/Skotchmaster/retail_console/internal/otp"
	"github.com/Skotchmaster/retail_console/internal/repo"
	"github.com/Skotchmaster/retail_console/internal/search"
	"github.com/Skotchmaster/retail_console/internal/secret"
	"github.com/Skotchmaster/retail_console/internal/service"
	"github.com/Skotchmaster/retail_console/internal/storage"
	"github.com/Skotchmaster/retail_console/internal/tokens"
	"github.com/Skotchmaster/retail_console/pkg/config"
	"github.com/Skotchmaster/retail_console/pkg/db"
	"github.com/Skotchmaster/retail_console/pkg/logging"
	loggingmw "github.com/Skotchmaster/retail_console/pkg/middleware/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()
	if missing := cfg.Validate(); len(missing) > 0 {
		log.Fatalf("missing required env: %s", strings.Join(missing, ", "))
	}

	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer func() { _ = db.Close(gdb) }()

	store := repo.New(gdb)
	if err := store.Migrate(initCtx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("sql db: %v", err)
	}

	rdb, err := cache.Dial(initCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	defer rdb.Close()
	kv := cache.New(rdb)

	var publisher events.Publisher = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := events.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		defer prod.Close()
		publisher = prod
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	if cfg.StorageDriver == storage.DriverGCS {
		config.MustNonEmpty(cfg.StorageBucket, "STORAGE_BUCKET")
	}
	blobs, err := storage.New(initCtx, storage.Options{
		Driver:    cfg.StorageDriver,
		Dir:       cfg.StorageDir,
		Bucket:    cfg.StorageBucket,
		PublicURL: cfg.StoragePublicURL,
	})
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}

	m := metrics.New()
	evaluator := authz.NewEvaluator(cfg.RootAdminEmail)
	secrets := secret.NewProvisioner(kv, store, cfg.SecretTTL)
	issuer := tokens.NewIssuer(cfg.AccessTTL, cfg.RefreshTTL)

	audit := &service.AuditService{
		Store:     store,
		Members:   store,
		Authz:     evaluator,
		Publisher: publisher,
		Topic:     cfg.AuditTopic,
	}
	auth := &service.AuthService{
		Sessions:    store,
		Members:     store,
		Credentials: credentials.NewVerifier(store),
		OTP:         otp.NewManager(kv, notify.NewQueue(publisher, cfg.NotifyTopic), cfg.OTPTTL, cfg.OTPMaxAttempts),
		Secrets:     secrets,
		Tokens:      issuer,
		Audit:       audit,
		Metrics:     m,
	}
	members := &service.MemberService{
		Members:      store,
		Sessions:     store,
		Images:       store,
		Cache:        kv,
		Secrets:      secrets,
		Authz:        evaluator,
		Audit:        audit,
		RootPassword: cfg.RootAdminPassword,
		ProfileTTL:   cfg.ProfileCacheTTL,
	}
	if cfg.ESURL != "" {
		esClient, err := search.NewClient(initCtx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("es_disabled", "error", err)
		} else {
			members.Index = search.NewMemberIndex(esClient, cfg.ESMemberIndex)
		}
	}

	if err := members.Bootstrap(logging.IntoContext(initCtx, logger)); err != nil {
		log.Fatalf("bootstrap root admin: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(m.Instrument())

	deps := &httpserver.Deps{
		Auth:           &httpserver.AuthHTTP{Svc: auth, Cookies: httpserver.CookieConfig{Secure: cfg.CookieSecure}},
		Members:        &httpserver.MembersHTTP{Svc: members},
		Logs:           &httpserver.LogsHTTP{Svc: audit},
		Images:         &httpserver.ImagesHTTP{Svc: &service.ImageService{Blobs: blobs, Images: store, Cache: kv}},
		Gate:           middleware.NewGate(secrets, issuer, members, m),
		Metrics:        m,
		DB:             sqlDB,
		ThrottleWindow: cfg.ThrottleWindow,
	}
	if cfg.CSRFEnabled {
		csrfCfg := middleware.DefaultCSRFConfig()
		csrfCfg.Secure = cfg.CookieSecure
		deps.CSRF = &csrfCfg
	}
	if cfg.StorageDriver == storage.DriverFS && strings.HasPrefix(cfg.StoragePublicURL, "/") {
		deps.StaticPrefix = cfg.StoragePublicURL
		deps.StaticDir = cfg.StorageDir
	}
	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http_listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	}
	logger.Info("http_stopped")
}
