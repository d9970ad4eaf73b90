package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/notify"
	"github.com/mmynk/settleup/internal/service"
	"github.com/mmynk/settleup/internal/storage/sqlstore"
	"github.com/mmynk/settleup/pkg/api/apiconnect"
	"github.com/mmynk/settleup/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.SetupWithOptions(cfg.Log().Level(), cfg.Log().JSON())

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Service) error {
	store, err := sqlstore.Connect(cfg.Database().Driver(), cfg.Database().DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.Database().Driver())

	notifier, closeNotifier, err := newNotifier(cfg.Kafka())
	if err != nil {
		return err
	}
	defer closeNotifier()

	jwtManager := auth.NewJWTManager(cfg.Auth().JWTSecret(), cfg.Auth().TokenTTL())

	opts := []connect.HandlerOption{
		// Outermost first: metrics see every call, logging sees the authenticated user.
		connect.WithInterceptors(
			middleware.MetricsInterceptor(),
			middleware.RequireAuth(jwtManager, apiconnect.UserServiceRegisterProcedure),
			middleware.LoggingInterceptor(),
		),
		connect.WithRecover(recoverHandler),
	}

	var services []mount
	add := func(path string, handler http.Handler) {
		services = append(services, mount{path: path, handler: handler})
	}
	add(apiconnect.NewExpenseServiceHandler(service.NewExpenseService(store, notifier), opts...))
	add(apiconnect.NewBalanceServiceHandler(service.NewBalanceService(store, cfg.App().Currency()), opts...))
	add(apiconnect.NewGroupServiceHandler(service.NewGroupService(store), opts...))
	add(apiconnect.NewUserServiceHandler(service.NewUserService(store, jwtManager, slog.Default()), opts...))

	router, err := newRouter(store, services, cfg.Server().StaticPath())
	if err != nil {
		return err
	}

	// h2c serves HTTP/2 without TLS, which Connect and gRPC clients need.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server().Port()),
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("Server stopped gracefully")
	return nil
}

func recoverHandler(_ context.Context, spec connect.Spec, _ http.Header, r any) error {
	slog.Error("Handler panicked", "procedure", spec.Procedure, "panic", r)
	return connect.NewError(connect.CodeInternal, errors.New("an internal error occurred"))
}

// newNotifier publishes to Kafka when brokers are configured. Every notification is
// logged either way.
func newNotifier(cfg *config.KafkaConfig) (notify.Sender, func(), error) {
	if !cfg.Enabled() {
		slog.Info("Kafka not configured, notifications will be logged")
		return notify.NewLogSender(nil), func() {}, nil
	}

	sender, err := notify.NewKafkaSender(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}
	slog.Info("Publishing notifications to kafka", "brokers", cfg.Brokers(), "topic", cfg.Topic())
	return notify.Multi{notify.NewLogSender(nil), sender}, sender.Close, nil
}
