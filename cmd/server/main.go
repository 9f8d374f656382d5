package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/YeQiu29/absensi-wa-bot/internal/app"
	"github.com/YeQiu29/absensi-wa-bot/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.Load(config.ResolvePath(""))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	bot, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize bot: %v", err)
	}
	defer func() {
		if err := bot.Close(); err != nil {
			logger.Error("shutdown incomplete", slog.Any("error", err))
		}
	}()

	if !cfg.Assistant.Enabled() {
		logger.Warn("GEMINI_API_KEY is not set, free-text questions will get the not-configured reply")
	}
	logger.Info("bot starting",
		slog.String("grpc", cfg.Server.ListenAddr),
		slog.String("gateway", cfg.WhatsApp.GatewayURL),
		slog.String("timezone", cfg.Timezone),
		slog.String("ledger_dir", cfg.Ledger.Dir),
	)

	if err := bot.Run(ctx); err != nil {
		logger.Error("bot stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("bot stopped")
}
