// Command zeroxbot streams Bitget futures tickers, asks the decision oracle
// about every price change and executes its BUY/SELL verdicts. It also
// publishes the engine state as a JSON snapshot for the dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/zeroxbot/internal/app"
	"github.com/alanyoungcy/zeroxbot/internal/config"
	"github.com/alanyoungcy/zeroxbot/internal/crypto"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code. Every deferred
// cleanup has run by the time it returns.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("zeroxbot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.toml", "path to configuration file")
	encryptOut := fs.String("encrypt-secret", "", "encrypt exchange.api_secret with exchange.secret_password into this file and exit")
	ask := fs.String("ask", "", "send a message to the decision oracle, print the reply and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger = slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if *encryptOut != "" {
		if err := encryptSecret(cfg, *encryptOut); err != nil {
			fmt.Fprintf(stderr, "encrypt-secret: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "encrypted secret written to %s\n", *encryptOut)
		return 0
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("zeroxbot starting",
		slog.String("config", *configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *ask != "" {
		reply, err := application.Ask(ctx, *ask)
		if err != nil {
			fmt.Fprintf(stderr, "ask: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s\n[%s]\n", reply.Reply, reply.Decision.Action.Label())
		return 0
	}

	if err := application.Run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(stderr, "fatal: %v\n", err)
			return 1
		}
		logger.Info("application shut down gracefully")
	}

	logger.Info("zeroxbot stopped")
	return 0
}

// logLevel maps the configured level name onto slog, case-insensitively.
func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// encryptSecret writes the configured plain API secret to path, encrypted
// with the configured password.
func encryptSecret(cfg *config.Config, path string) error {
	if cfg.Exchange.ApiSecret == "" {
		return errors.New("exchange.api_secret (or BITGET_SECRET) is empty")
	}
	if cfg.Exchange.SecretPassword == "" {
		return errors.New("exchange.secret_password (or ZEROX_EXCHANGE_SECRET_PASSWORD) is empty")
	}
	blob, err := crypto.EncryptSecret(cfg.Exchange.ApiSecret, cfg.Exchange.SecretPassword)
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o600)
}
