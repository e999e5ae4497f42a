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

	"github.com/billhaven/billpay/internal/checkout"
	"github.com/billhaven/billpay/internal/config"
	"github.com/billhaven/billpay/internal/directory"
	"github.com/billhaven/billpay/internal/gateway"
	"github.com/billhaven/billpay/internal/handler"
	"github.com/billhaven/billpay/internal/logging"
	"github.com/billhaven/billpay/internal/middleware"
	"github.com/billhaven/billpay/internal/track"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("billpay-api", cfg.LogLevel, cfg.AppEnv)

	dir := directory.New(directory.DefaultBillers(cfg))
	tracker := track.NewIndex()
	factory := gateway.NewFactory(cfg, tracker)
	tokens := checkout.NewTokenService(cfg)

	payments := handler.NewPaymentHandler(dir, factory, tracker)
	tokenHandler := handler.NewTokenHandler(dir, tokens)
	webhooks := handler.NewWebhookHandler(dir, factory)
	metrics := middleware.NewMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/payment/capabilities/{billerId}", payments.Capabilities)
	mux.HandleFunc("POST /api/payment/process", payments.Process)
	mux.HandleFunc("GET /api/payment/billers", payments.Billers)
	mux.HandleFunc("GET /api/payment/status/{transactionId}", payments.Status)
	mux.HandleFunc("POST /api/payment/token/{authProvider}", tokenHandler.Issue)
	mux.HandleFunc("POST /api/payment/webhook/{gateway}", webhooks.Receive)

	var root http.Handler = mux
	root = middleware.Recovery(root)
	root = middleware.Logging(root)
	root = metrics.Middleware(mux)(root)
	root = middleware.Tracing(root)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
