// Command pesactl runs one-off lifecycle operations against the payment ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/app"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
)

var Version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: failed to load .env:", err)
	}

	rootCmd := newRootCmd(buildFromEnv, os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	return app.Build(ctx, cfg, logger)
}
