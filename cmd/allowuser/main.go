// Command allowuser adds an email address to the registration allowlist.
//
//	allowuser -email someone@example.com
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/storage/sqlstore"
	"github.com/mmynk/settleup/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file (optional)")
	email := flag.String("email", "", "email address to allow")
	flag.Parse()

	logging.Setup()

	if strings.TrimSpace(*email) == "" || !strings.Contains(*email, "@") {
		fmt.Fprintln(os.Stderr, "Please provide an email address with -email.")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := sqlstore.Connect(cfg.Database().Driver(), cfg.Database().DSN())
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.AllowEmail(context.Background(), *email); err != nil {
		slog.Error("Failed to add email to allowlist", "email", *email, "error", err)
		os.Exit(1)
	}
	slog.Info("Added email to the allowlist", "email", strings.ToLower(strings.TrimSpace(*email)))
}
