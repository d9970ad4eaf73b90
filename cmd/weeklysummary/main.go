// Command weeklysummary sends every active user a summary of last week's expenses.
// It runs once and exits; schedule it weekly with cron or a Kubernetes CronJob.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/notify"
	"github.com/mmynk/settleup/internal/storage/sqlstore"
	"github.com/mmynk/settleup/internal/summary"
	"github.com/mmynk/settleup/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file (optional)")
	at := flag.String("at", "", "run as if at this date (YYYY-MM-DD), default now")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.SetupWithOptions(cfg.Log().Level(), cfg.Log().JSON())

	now := time.Now()
	if *at != "" {
		now, err = time.Parse(time.DateOnly, *at)
		if err != nil {
			slog.Error("Invalid -at date", "value", *at, "error", err)
			os.Exit(2)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, now); err != nil {
		slog.Error("Weekly summary failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Service, at time.Time) error {
	store, err := sqlstore.Connect(cfg.Database().Driver(), cfg.Database().DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	var sender notify.Sender = notify.NewLogSender(nil)
	if cfg.Kafka().Enabled() {
		kafka, err := notify.NewKafkaSender(cfg.Kafka())
		if err != nil {
			return fmt.Errorf("failed to connect to kafka: %w", err)
		}
		defer kafka.Close()
		sender = notify.Multi{sender, kafka}
	}

	sent, err := summary.NewJob(store, sender).Run(ctx, at)
	slog.Info("Weekly summary finished", "sent", sent)
	return err
}
