package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nedaZarei/CrystalBallFortunes/config"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/logger"
	"github.com/nedaZarei/CrystalBallFortunes/service"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to the YAML config (empty for env only)")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.InitConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fortuneService := service.NewService(cfg, service.WithLogger(log))
	if err := fortuneService.StartService(ctx); err != nil {
		log.Error("failed to start fortune service", slog.Any("error", err))
		os.Exit(1)
	}
}
