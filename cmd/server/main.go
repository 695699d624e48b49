package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"edugenius/backend/internal/api"
	"edugenius/backend/internal/auth"
	"edugenius/backend/internal/catalog"
	"edugenius/backend/internal/config"
	"edugenius/backend/internal/generation"
	"edugenius/backend/internal/logging"
	"edugenius/backend/internal/mcp"
	"edugenius/backend/internal/observability"
	"edugenius/backend/internal/repository"
	"edugenius/backend/internal/services"
	"edugenius/backend/internal/tls"
)

func main() {
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		log.Fatalf("edugenius: %v", err)
	}
}

func run(configFile string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"provider", cfg.Generation.Provider,
		"model", cfg.Generation.Model,
		"auth_enabled", cfg.Auth.Enabled,
		"contact_sender", cfg.Contact.Sender,
	)

	shutdownTracing, err := observability.InitOTel(ctx, cfg, api.Version, logger)
	if err != nil {
		return fmt.Errorf("telemetry initialization failed: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	invoker, err := generation.NewInvoker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("generation backend initialization failed: %w", err)
	}

	flows, err := catalog.Load(invoker, logger)
	if err != nil {
		return fmt.Errorf("flow catalog failed to load: %w", err)
	}
	logger.Info("Flow catalog loaded", "flows", len(flows.List()))

	checks := map[string]api.Pinger{}
	var sender services.Sender = &services.LogSender{Logger: logger, Recipient: "support@edugenius.example"}
	if cfg.DB.Enabled {
		dbPool, err := initDatabase(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("database initialization failed: %w", err)
		}
		defer dbPool.Close()

		outbox := repository.NewPostgresContactOutbox(dbPool)
		if err := outbox.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("database schema failed: %w", err)
		}
		checks["database"] = outbox
		if cfg.Contact.Sender == "postgres" {
			sender = &services.OutboxSender{Outbox: outbox}
		}
		logger.Info("Database connected")
	}
	contact := services.NewContactService(sender, logger.With("component", "contact"))

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(cfg.Telemetry.ServiceName))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("20M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Error("request", "method", v.Method, "uri", v.URI, "status", v.Status,
					"latency", v.Latency, "request_id", v.RequestID, "error", v.Error)
				return nil
			}
			logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "request_id", v.RequestID)
			return nil
		},
	}))

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}
	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))
	requireAuth := echo.WrapMiddleware(authz.RequireAuth)

	runTimeout := api.RunDeadline(flows.List(), generation.CallBudget(cfg))
	handler := api.NewHandler(flows, contact, checks, logger.With("component", "api")).
		WithDocs(api.DocsConfig{
			Issuer:   cfg.Auth.OktaDomain,
			ClientID: cfg.Auth.ClientID,
		}).
		WithRunTimeout(runTimeout)
	api.RegisterRoutes(e, handler, requireAuth)
	logger.Info("REST API handlers mounted", "run_timeout", runTimeout)

	mcpServer, err := mcp.NewServer(flows, api.Version)
	if err != nil {
		return fmt.Errorf("mcp server initialization failed: %w", err)
	}
	mcp.MountHTTPHandlers(e, mcpServer.GetMCPServer(), requireAuth)
	logger.Info("MCP protocol handlers mounted", "tools", len(mcpServer.Tools()))

	if cfg.TLS.Enable {
		created, err := tls.EnsureSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			return fmt.Errorf("tls certificate: %w", err)
		}
		if created {
			logger.Warn("Generated self-signed certificate", "cert", cfg.TLS.CertFile)
		}
	}

	// No WriteTimeout: /mcp/sse streams for the life of the session, and flow runs are
	// bounded by the run timeout on their route instead.
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
		logger.Info("Server stopped gracefully")
	}
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
