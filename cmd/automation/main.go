package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/config"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/database"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/utils"
)

func main() {
	cfg := config.LoadConfig()
	utils.InitLogger(utils.LogOptions{Level: cfg.LogLevel, Console: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func() (*database.DB, error) {
		return database.Open(cfg.DBDriver, cfg.DatabaseURL, database.Options{})
	}

	root := NewRootCommand(ctx, cfg, open)
	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("❌ Command failed")
		os.Exit(1)
	}
}
