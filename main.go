package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gowa-gateway/config"
	"gowa-gateway/database"
	"gowa-gateway/internal/handler"
	customMiddleware "gowa-gateway/internal/middleware"
	"gowa-gateway/internal/service"
	"gowa-gateway/internal/whatsapp"
	"gowa-gateway/internal/ws"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// credentialBackend adalah gabungan kebutuhan manager dan adapter.
type credentialBackend interface {
	service.CredentialStore
	whatsapp.DeviceStore
	Close() error
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func openCredentials(ctx context.Context, cfg *config.Config, log zerolog.Logger) (credentialBackend, error) {
	if cfg.CredentialBackend == config.BackendPostgres {
		return database.NewPostgresStore(ctx, cfg.DBConnectionString, log)
	}
	return database.NewSQLiteStore(cfg.SessionDir, log)
}

func main() {
	// Load .env (abaikan error kalau file tidak ada, misal di production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := openCredentials(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.CredentialBackend).Msg("failed to open credential store")
	}
	defer creds.Close()

	// Inisialisasi WebSocket Hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	adapter := whatsapp.NewAdapter(creds, whatsapp.Options{
		DeviceName: cfg.DeviceName,
		PrintQR:    cfg.PrintQR,
	}, log)

	forwarder := service.NewWebhookForwarder(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout,
		log.With().Str("component", "webhook").Logger())

	manager := service.NewSessionManager(adapter, creds, service.ManagerConfig{
		StoragePrefix: cfg.SessionPrefix,
		CountryCode:   cfg.CountryCode,
		JIDDomain:     cfg.JIDDomain,
		ReconnectBase: cfg.ReconnectBase,
		ReconnectMax:  cfg.ReconnectMax,
	},
		service.WithForwarder(forwarder),
		service.WithPublisher(hub),
		service.WithLogger(log.With().Str("component", "sessions").Logger()),
	)

	// Pulihkan session yang kredensialnya masih tersimpan
	restored, err := manager.Restore(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore sessions")
	} else {
		log.Info().Strs("sessions", restored).Msg("restoring sessions")
	}

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestedWith,
			echo.HeaderAuthorization,
		},
	}))

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: cfg.RateWindow,
			},
		),
	}))

	h := handler.New(manager)

	// health check publik
	e.GET("/", h.Health)

	// JWT hanya aktif kalau API_JWT_SECRET diisi
	api := e.Group("", customMiddleware.JWTAuthMiddleware(cfg.JWTSecret))
	api.POST("/session/start", h.StartSession)
	api.POST("/session/logout", h.LogoutSession)
	api.GET("/session/status/:id", h.SessionStatus)
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/export", h.ExportSessions)
	api.POST("/send-message", h.SendMessage)
	api.GET("/ws", handler.WebSocketHandler(hub))

	go func() {
		log.Info().Str("port", cfg.Port).Str("backend", cfg.CredentialBackend).Msg("server starting")
		// bind ke semua interface, bukan hanya 127.0.0.1
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	manager.Shutdown()
}
