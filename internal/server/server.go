// Package server wires the tutor's components together and manages
// their lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"

	"github.com/daracheol/lingotutor/internal/archive"
	appconfig "github.com/daracheol/lingotutor/internal/config"
	"github.com/daracheol/lingotutor/internal/connectors/telegram"
	"github.com/daracheol/lingotutor/internal/executor"
	"github.com/daracheol/lingotutor/internal/memory_service"
	"github.com/daracheol/lingotutor/internal/models/anthropic"
	"github.com/daracheol/lingotutor/internal/models/gemini"
	"github.com/daracheol/lingotutor/internal/models/openai"
	"github.com/daracheol/lingotutor/internal/monitoring"
	"github.com/daracheol/lingotutor/internal/prompt_manager"
	"github.com/daracheol/lingotutor/internal/storage_manager"
	"github.com/daracheol/lingotutor/pkg/httpmiddleware"
	"github.com/daracheol/lingotutor/pkg/logger"
	"github.com/daracheol/lingotutor/pkg/metrics"
)

const healthLogInterval = time.Hour

// Server encapsulates the tutor's components and lifecycle management.
type Server struct {
	cfg *appconfig.AppConfig
	log logger.Logger

	metrics           *metrics.Metrics
	stats             *monitoring.Stats
	memory            *memory_service.Service
	assembler         *prompt_manager.Assembler
	executor          *executor.Executor
	archiver          *archive.Archiver
	telegramConnector *telegram.Connector

	cancel context.CancelFunc
}

// New creates a Server instance with all components initialized.
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg: cfg,
		log: log,
	}

	if cfg.Monitoring.MetricsEnabled {
		m := metrics.NewMetrics(true, true, log)
		s.metrics = &m
	}
	s.stats = monitoring.NewStats(s.metrics)

	s.memory = memory_service.New(memory_service.Config{
		HistoryLimit: cfg.Memory.HistoryLimit,
		FileLimit:    cfg.Memory.FileLimit,
		Telemetry:    s.stats,
		Logger:       log,
	})

	s.assembler = prompt_manager.New(prompt_manager.Config{
		Store:         s.memory,
		ContextTurns:  cfg.Memory.ContextTurns,
		RecencyWindow: cfg.Memory.RecencyWindow,
		Logger:        log,
	})

	analyzer, err := s.createAnalyzer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	s.executor = executor.New(executor.Config{
		Memory:       s.memory,
		Assembler:    s.assembler,
		Analyzer:     analyzer,
		Telemetry:    s.stats,
		Logger:       log,
		Timeout:      cfg.LLM.Timeout,
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryBackoff: cfg.LLM.RetryBackoff,
	})

	if cfg.Storage.ArchiveEnabled {
		provider, err := s.createStorageProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage provider: %w", err)
		}
		s.archiver = archive.New(archive.Config{
			Provider: provider,
			Logger:   log,
		})
	}

	if cfg.Telegram.Enabled() {
		s.telegramConnector, err = telegram.NewConnector(telegram.Config{
			BotToken: cfg.Telegram.BotToken,
			Debug:    cfg.Telegram.Debug,
		}, telegram.Deps{
			Handler:  s.executor,
			Memory:   s.memory,
			Archiver: s.archiver,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Telegram connector: %w", err)
		}
	}

	return s, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if s.telegramConnector == nil {
		return fmt.Errorf("no connector configured: please set TELEGRAM_BOT_TOKEN")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()

	s.setupGracefulShutdown()

	if s.metrics != nil {
		s.metrics.Listen(s.cfg.Monitoring.MetricsPort)
	}

	var wg sync.WaitGroup

	if s.cfg.Health.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.startOpsServer(ctx); err != nil {
				s.log.Error("Ops server failed", logger.ErrorField(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		botInfo, err := s.telegramConnector.GetBotInfo(ctx)
		if err != nil {
			s.log.Warn("Failed to get Telegram bot info", logger.ErrorField(err))
		} else {
			s.log.Info("Telegram bot connected",
				logger.StringField("bot_username", botInfo.Username),
				logger.StringField("bot_first_name", botInfo.FirstName))
		}

		if err := s.telegramConnector.Start(ctx); err != nil {
			s.log.Error("Telegram connector error", logger.ErrorField(err))
			cancel()
		}
	}()

	wg.Wait()
	s.log.Info("All connectors stopped")

	if s.archiver != nil {
		s.archiver.Close()
	}
	if s.metrics != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:contextcheck // New context needed for shutdown
		defer shutdownCancel()
		if err := s.metrics.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // Using new context for graceful shutdown
			s.log.Error("Metrics shutdown error", logger.ErrorField(err))
		}
	}

	return nil
}

// startOpsServer runs the health and stats HTTP endpoints until the
// context is cancelled.
func (s *Server) startOpsServer(ctx context.Context) error {
	healthMonitor := monitoring.NewHealthMonitor(monitoring.Config{
		Logger:            s.log,
		Stats:             s.stats,
		Version:           s.cfg.Version,
		TelegramConnector: s.telegramConnector,
		Timeout:           s.cfg.Health.Timeout,
		FailureThreshold:  s.cfg.Health.FailureThreshold,
	})
	healthMonitor.StartPeriodicLogging(ctx, healthLogInterval)

	mwConfig := httpmiddleware.DefaultConfig()
	mwConfig.Logger = s.log
	mwConfig.EnableLogging = true
	mwConfig.CORS = &httpmiddleware.CORSConfig{
		AllowedMethods: []string{http.MethodGet},
	}

	router := chi.NewRouter()
	httpmiddleware.ApplyToRouter(router, mwConfig)
	if s.metrics != nil {
		router.Use(s.metrics.HTTPMiddleware())
	}

	router.Get("/health", healthMonitor.HealthHandler())
	router.Get("/health/live", healthMonitor.LivenessHandler())
	router.Get("/health/ready", healthMonitor.ReadinessHandler())
	router.Get("/stats", healthMonitor.StatsHandler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Health.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.log.Info("Ops server listening", logger.IntField("port", s.cfg.Health.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("Ops server failed", logger.ErrorField(err))
		}
	}()

	<-ctx.Done()
	s.log.Info("Shutting down ops server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:contextcheck // New context needed for shutdown
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // Using new context for graceful shutdown
		s.log.Error("Ops server shutdown error", logger.ErrorField(err))
		return err
	}

	s.log.Info("Ops server stopped")
	return nil
}

// createStorageProvider builds the transcript storage backend.
func (s *Server) createStorageProvider(ctx context.Context) (storage_manager.FileProvider, error) {
	cfg := &s.cfg.Storage

	switch cfg.Backend {
	case "local":
		s.log.Info("Using local transcript storage", logger.StringField("directory", cfg.LocalDir))

		if err := os.MkdirAll(cfg.LocalDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return storage_manager.NewLocalFileProvider(cfg.LocalDir), nil

	case "s3":
		s.log.Info("Using S3 transcript storage",
			logger.StringField("bucket", cfg.S3Bucket),
			logger.StringField("prefix", cfg.S3Prefix),
			logger.StringField("region", cfg.S3Region))

		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3 bucket is required when using S3 storage")
		}

		configOptions := []func(*awsconfig.LoadOptions) error{}
		if cfg.S3Profile != "" {
			configOptions = append(configOptions, awsconfig.WithSharedConfigProfile(cfg.S3Profile))
		}
		if cfg.S3Region != "" {
			configOptions = append(configOptions, awsconfig.WithRegion(cfg.S3Region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		s3Client := storage_manager.NewAWSS3Client(s3.NewFromConfig(awsCfg))
		return storage_manager.NewS3FileProvider(cfg.S3Bucket, cfg.S3Prefix, s3Client), nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (must be 'local' or 's3')", cfg.Backend)
	}
}

// createAnalyzer creates a model client based on the configured provider.
func (s *Server) createAnalyzer(ctx context.Context) (executor.Analyzer, error) {
	provider := strings.ToLower(s.cfg.LLM.Provider)

	switch provider {
	case "gemini":
		s.log.Info("Initializing Gemini model",
			logger.StringField("model", s.cfg.Gemini.Model))
		return gemini.New(ctx, s.cfg.Gemini.APIKey, s.cfg.Gemini.Model, s.log)

	case "claude":
		s.log.Info("Initializing Claude model",
			logger.StringField("model", s.cfg.Anthropic.Model))
		return anthropic.NewClaudeModel(s.cfg.Anthropic.APIKey, s.cfg.Anthropic.Model, s.log)

	case "openai":
		s.log.Info("Initializing OpenAI model",
			logger.StringField("model", s.cfg.OpenAI.Model))
		return openai.New(s.cfg.OpenAI.APIKey, s.cfg.OpenAI.Model, s.log)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// setupGracefulShutdown sets up signal handling for graceful shutdown.
func (s *Server) setupGracefulShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		s.log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))

		if s.cancel != nil {
			s.cancel()
		}

		// Give components time to stop, then force exit.
		time.AfterFunc(30*time.Second, func() {
			s.log.Warn("Force exiting due to timeout")
			os.Exit(1)
		})
	}()
}
