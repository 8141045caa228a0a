package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aashish23092/farm-payment-ocr/client"
	"github.com/Aashish23092/farm-payment-ocr/config"
	"github.com/Aashish23092/farm-payment-ocr/handler"
	"github.com/Aashish23092/farm-payment-ocr/logger"
	"github.com/Aashish23092/farm-payment-ocr/repository"
	"github.com/Aashish23092/farm-payment-ocr/service"
	"github.com/Aashish23092/farm-payment-ocr/storage"
	"github.com/Aashish23092/farm-payment-ocr/worker"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Service stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	engines, err := buildEngines(ctx, cfg, log)
	if err != nil {
		return err
	}
	chain := client.NewEngineChain(log, cfg.OCRMinChars, engines...)
	log.Info().Strs("engines", chain.Engines()).Msg("OCR engines configured")

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeBlobs()

	reader := service.NewDocumentReader(chain, service.NewPDFProcessor(), service.NewQRScanner(), cfg.OCRLanguage, log)
	matcher := service.NewClientMatcher(store, store, service.WithLegacyAmountProximity(cfg.LegacyAmountProximityMatch))
	log.Info().Strs("strategies", matcher.Strategies()).Msg("Client matcher configured")

	queue := worker.NewQueue(log, cfg.QueueSize, cfg.WorkerCount, cfg.JobMaxRetries)
	screenshots := service.NewScreenshotService(store, blobs, reader, matcher, queue, log)
	extraction := service.NewExtractionService(reader, matcher)

	pending, err := screenshots.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover pending screenshots: %w", err)
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if err := queue.Start(workerCtx, screenshots.HandleJob); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	// Requeue publishes while workers drain, so a backlog larger than the
	// queue buffer does not block startup forever.
	go func() {
		if _, err := screenshots.Requeue(ctx, pending); err != nil {
			log.Error().Err(err).Msg("Failed to resume pending screenshots")
		}
	}()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinLogger(log))
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	handler.RegisterRoutes(router,
		handler.NewScreenshotHandler(screenshots, cfg.MaxUploadBytes),
		handler.NewPaymentHandler(extraction, cfg.MaxUploadBytes),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Starting Farm Payment OCR service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Workers did not finish in time; unfinished screenshots resume on next start")
	}
	return nil
}

// buildEngines creates the OCR engines named in OCR_ENGINES, in order.
func buildEngines(ctx context.Context, cfg *config.Config, log zerolog.Logger) ([]client.OCREngine, error) {
	var engines []client.OCREngine
	for _, name := range cfg.OCREngines {
		switch name {
		case "tesseract":
			engines = append(engines, client.NewTesseractClient(cfg.TesseractDataPath))
		case "paddle":
			engines = append(engines, client.NewPaddleClient(cfg.PaddleAPIURL))
		case "azure":
			if cfg.AzureEndpoint == "" || cfg.AzureKey == "" {
				return nil, errors.New("azure OCR needs AZURE_VISION_ENDPOINT and AZURE_VISION_KEY")
			}
			engines = append(engines, client.NewAzureClient(cfg.AzureEndpoint, cfg.AzureKey))
		case "gemini":
			if cfg.GeminiAPIKey == "" {
				return nil, errors.New("gemini OCR needs GEMINI_API_KEY")
			}
			g, err := client.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModels, log)
			if err != nil {
				return nil, err
			}
			engines = append(engines, g)
		default:
			return nil, fmt.Errorf("unknown OCR engine %q", name)
		}
	}
	if len(engines) == 0 {
		return nil, client.ErrNoEngines
	}
	return engines, nil
}

func openStore(cfg *config.Config, log zerolog.Logger) (repository.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	store, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.BlobStore, func(), error) {
	switch cfg.StorageBackend {
	case "", "local":
		store, err := storage.NewLocalStore(cfg.StorageDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "gcs":
		store, err := storage.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close GCS client")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
