package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	appconfig "github.com/daracheol/lingotutor/internal/config"
	"github.com/daracheol/lingotutor/internal/server"
	"github.com/daracheol/lingotutor/pkg/config"
	"github.com/daracheol/lingotutor/pkg/logger"
)

const configFile = "config.yaml"

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	var cfg appconfig.AppConfig
	if err := config.GetConfig(&cfg, configFile, true); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.Format,
		Service: cfg.ServiceName,
	})
	cfg.LogConfig(log)

	srv, err := server.New(context.Background(), &cfg, log)
	if err != nil {
		log.Error("Failed to initialize server", logger.ErrorField(err))
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		log.Error("Server exited with error", logger.ErrorField(err))
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}
