package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jcmexdev/pod-fulfillment/internal/config"
	"github.com/jcmexdev/pod-fulfillment/internal/fulfillment"
	runlogsqlite "github.com/jcmexdev/pod-fulfillment/internal/fulfillment/runlog/sqlite"
	"github.com/jcmexdev/pod-fulfillment/internal/httpx"
	"github.com/jcmexdev/pod-fulfillment/internal/idempotency"
	"github.com/jcmexdev/pod-fulfillment/internal/notify"
	"github.com/jcmexdev/pod-fulfillment/internal/orderstore"
	"github.com/jcmexdev/pod-fulfillment/internal/pkg/telemetry"
	"github.com/jcmexdev/pod-fulfillment/internal/provider"
	"github.com/jcmexdev/pod-fulfillment/internal/provider/printful"
	"github.com/jcmexdev/pod-fulfillment/internal/reconcile"
	"github.com/jcmexdev/pod-fulfillment/internal/webhook"
)

func main() {
	_ = godotenv.Load()
	telemetry.InitLogger()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	runs, err := runlogsqlite.Open(cfg.RunLogPath)
	if err != nil {
		slog.Error("failed to open run log", "path", cfg.RunLogPath, "error", err)
		os.Exit(1)
	}
	defer runs.Close()

	idem := idempotency.NewRedisStore(cfg.RedisAddr)

	notifier := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.NotifyTopic, cfg.ServiceName)
	defer func() {
		if err := notifier.Close(); err != nil {
			slog.Error("kafka writer close error", "error", err)
		}
	}()

	// The commerce platform owns the order store; this in-process store is
	// the integration seam until its API is available.
	orders := orderstore.NewMemoryStore()

	registry := provider.NewRegistry(cfg.DefaultProvider)
	printfulClient, err := printful.NewClient(&printful.Config{
		APIBaseURL:     cfg.PrintfulAPIBase,
		Token:          cfg.PrintfulToken,
		TimeoutSeconds: cfg.VendorTimeoutSeconds,
	})
	if err != nil {
		slog.Error("failed to configure printful client", "error", err)
		os.Exit(1)
	}
	registry.Register(printfulClient)

	orchestrator := fulfillment.NewOrchestrator(registry, orders, runs)
	reconciler := reconcile.NewReconciler(orders, notifier, idem)

	receiver := webhook.NewReceiver(cfg.WebhookSecret, idem)
	webhook.RegisterHandlers(receiver, reconciler, webhook.LoggingCatalogSync{})

	handler := httpx.NewHandler(orchestrator, receiver, registry, runs, idem)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("fulfillment service running", "addr", cfg.HTTPAddr, "default_provider", cfg.DefaultProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
}
