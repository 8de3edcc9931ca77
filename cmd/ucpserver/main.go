// UCP checkout service for an age-restricted drinks merchant.
// Serves checkout sessions over REST and MCP with capability negotiation.
// Designed for Cloud Run deployment with stateless operation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ucp-merchant/internal/catalog"
	"ucp-merchant/internal/checkout"
	"ucp-merchant/internal/compliance"
	"ucp-merchant/internal/config"
	"ucp-merchant/internal/envelope"
	"ucp-merchant/internal/handler"
	"ucp-merchant/internal/middleware"
	"ucp-merchant/internal/model"
	"ucp-merchant/internal/negotiation"
	"ucp-merchant/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("merchant_id", cfg.MerchantID),
		slog.String("environment", cfg.Environment),
		slog.String("store_url", cfg.Merchant.StoreURL),
	)

	// Domain collaborators
	cat := catalog.NewStatic(catalog.DemoProducts())
	evaluator := compliance.New(cfg.ComplianceRules())
	store := checkout.NewMemoryStore()
	engine := checkout.NewEngine(store, cat, evaluator, nil, cfg.BuildEngineConfig(), logger)

	// Capability negotiation against the merchant discovery profile.
	// Profile fetches use a Chrome TLS fingerprint: agent profiles are
	// commonly hosted behind CDNs that rate limit Go's default client.
	profile := cfg.BuildProfile()
	fetcher := negotiation.NewHTTPProfileFetcherWithConfig(negotiation.ProfileFetcherConfig{
		Transport: transport.NewChromeTransport(negotiation.DefaultFetchTimeout),
	})
	negotiator := negotiation.NewNegotiator(fetcher, profile,
		cfg.CoreCapabilities(), cfg.ExtensionCapabilities())

	h := handler.New(engine, profile, envelope.NewBuilder(model.Version),
		negotiator, cat, evaluator, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → logging → negotiation → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		negotiation.Middleware(negotiator, logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
