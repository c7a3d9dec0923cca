package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/events"
	"github.com/gatemint/gatemint/internal/gate/handler"
	"github.com/gatemint/gatemint/internal/health"
	"github.com/gatemint/gatemint/internal/identity"
	"github.com/gatemint/gatemint/internal/issuance"
	"github.com/gatemint/gatemint/internal/ledger"
	"github.com/gatemint/gatemint/internal/registrar"
	"github.com/gatemint/gatemint/internal/verifier"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("gated exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("gated")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("gate.port", 8080)
	viper.SetDefault("gate.issuer_url", "")
	viper.SetDefault("gate.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("gate.rate_limit_rps", 20)
	viper.SetDefault("gate.dev_auth", true)
	viper.SetDefault("database.url", "")
	viper.SetDefault("identity.key_dir", "keys")
	viper.SetDefault("identity.token_ttl_seconds", 3600)
	viper.SetDefault("verifier.mode", "hash")
	viper.SetDefault("verifier.endpoint", "")
	viper.SetDefault("verifier.timeout", "5s")
	viper.SetDefault("registrar.auto_claim_admin", "")
	viper.SetDefault("webhooks.probe_enabled", true)
	viper.SetDefault("webhooks.probe_interval", "5m")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Event journal + webhook forwarder ────────────────────────────────────
	journal := events.NewJournal()
	forwarder := events.NewForwarder(logger)
	forwarder.SetMetricsRecorder(handler.RecordWebhookDelivery)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Pump journal events into the webhook forwarder so deliveries carry
	// journal sequence numbers.
	eventCh, cancelSub := journal.Subscribe()
	defer cancelSub()
	go func() {
		for ev := range eventCh {
			forwarder.Emit(ev)
		}
	}()

	// ── Webhook endpoint prober ──────────────────────────────────────────────
	if viper.GetBool("webhooks.probe_enabled") {
		interval, _ := time.ParseDuration(viper.GetString("webhooks.probe_interval"))
		prober := health.New(forwarder, health.Config{CheckInterval: interval}, logger)
		prober.SetMetricsRecord(handler.RecordWebhookProbe)

		// Separate signal channel: quit is consumed by the shutdown path.
		probeQuit := make(chan os.Signal, 1)
		signal.Notify(probeQuit, syscall.SIGINT, syscall.SIGTERM)
		go prober.Start(probeQuit)
	}

	// ── Storage (memory by default, postgres when database.url is set) ───────
	var (
		reg registrar.Registrar
		led ledger.Ledger
	)
	dbURL := viper.GetString("database.url")
	if dbURL != "" {
		db, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")

		reg = registrar.NewPostgresRegistrar(db, logger)
		led = ledger.NewPostgresLedger(db, journal, logger)
	} else {
		logger.Info("no database.url configured, using in-memory storage")
		reg = registrar.New()
		led = ledger.New(journal)
	}

	// ── Optional boot-time admin claim ───────────────────────────────────────
	if auto := viper.GetString("registrar.auto_claim_admin"); auto != "" {
		addr, err := commitment.ParseAddress(auto)
		if err != nil {
			return fmt.Errorf("registrar.auto_claim_admin: %w", err)
		}
		switch err := reg.ClaimAdmin(context.Background(), addr); {
		case err == nil:
			logger.Info("admin claimed at boot", zap.Stringer("admin", addr))
		case errors.Is(err, registrar.ErrAlreadyInitialized):
			logger.Info("admin already claimed, skipping boot-time claim")
		default:
			return fmt.Errorf("boot-time admin claim: %w", err)
		}
	}

	// ── Credential verifier ──────────────────────────────────────────────────
	var verif verifier.Verifier
	switch mode := viper.GetString("verifier.mode"); mode {
	case "hash", "":
		verif = verifier.NewHashVerifier()
		logger.Info("verifier: hash-and-compare")
	case "remote":
		endpoint := viper.GetString("verifier.endpoint")
		if endpoint == "" {
			return errors.New("verifier.mode=remote requires verifier.endpoint")
		}
		timeout, _ := time.ParseDuration(viper.GetString("verifier.timeout"))
		verif = verifier.NewRemoteVerifier(endpoint, timeout, logger)
		logger.Info("verifier: remote", zap.String("endpoint", endpoint))
	default:
		return fmt.Errorf("unknown verifier.mode %q", mode)
	}

	// ── Issuance ─────────────────────────────────────────────────────────────
	issuer := issuance.NewService(reg, verif, led, logger)
	issuer.SetMetricsRecorder(handler.RecordVerification)

	// ── Identity (actor tokens) ──────────────────────────────────────────────
	keyDir := viper.GetString("identity.key_dir")
	key, err := identity.LoadOrCreateKey(keyDir)
	if err != nil {
		return fmt.Errorf("signing key setup: %w", err)
	}
	logger.Info("signing key ready", zap.String("key_dir", keyDir))

	httpPort := viper.GetInt("gate.port")
	issuerURL := viper.GetString("gate.issuer_url")
	if issuerURL == "" {
		issuerURL = fmt.Sprintf("http://localhost:%d", httpPort)
	}
	tokenTTL := time.Duration(viper.GetInt("identity.token_ttl_seconds")) * time.Second
	tokens := identity.NewActorTokenIssuer(key, issuerURL, tokenTTL)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authHandler := handler.NewAuthHandler(tokens, logger)
	registrarHandler := handler.NewRegistrarHandler(reg, logger)
	tokenHandler := handler.NewTokenHandler(issuer, led, logger)
	eventsHandler := handler.NewEventsHandler(journal, forwarder, logger)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("gate.cors_origins")
	corsConfig := cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	rps := viper.GetInt("gate.rate_limit_rps")
	if rps > 0 {
		router.Use(handler.RateLimiter(rps, rps*2))
	}

	router.Use(requestLogger(logger))
	router.Use(handler.PrometheusMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	public := router.Group("/api/v1")
	authed := router.Group("/api/v1")
	authed.Use(handler.RequireActor(tokens))

	if viper.GetBool("gate.dev_auth") {
		logger.Warn("development token endpoint enabled; disable gate.dev_auth in production")
		authHandler.Register(public)
	}
	registrarHandler.Register(public, authed)
	tokenHandler.Register(public, authed)
	eventsHandler.Register(public, authed)

	// ── Serve ────────────────────────────────────────────────────────────────
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gate HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down gate...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("gate stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
