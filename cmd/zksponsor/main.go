package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/layer-3/zksponsor"
	"github.com/layer-3/zksponsor/config"
	"github.com/layer-3/zksponsor/internal/sui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var addr, storeBackend, logLevel string
	var generateKey bool

	flagSet := pflag.NewFlagSet("zksponsor", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", "", "listen address (default :$PORT)")
	flagSet.StringVar(&storeBackend, "store", "", "state backend: memory or redis (default $STORE_BACKEND)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")
	flagSet.BoolVar(&generateKey, "generate-sponsor-key", false, "print a new sponsor private key and its address, then exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if generateKey {
		return printNewSponsorKey()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if storeBackend != "" {
		cfg.Store = storeBackend
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if addr == "" {
		addr = ":" + cfg.Port
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := zksponsor.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	return server.Run(ctx, addr)
}

func printNewSponsorKey() error {
	key, err := sui.GenerateKeypair()
	if err != nil {
		return err
	}
	encoded, err := key.EncodePrivateKey()
	if err != nil {
		return err
	}
	fmt.Printf("SPONSOR_PRIVATE_KEY=%s\n# address %s\n", encoded, key.Address())
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
