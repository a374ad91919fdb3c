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

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"yard-service/internal/auth"
	"yard-service/internal/client"
	"yard-service/internal/config"
	"yard-service/internal/db"
	httphandler "yard-service/internal/http"
	"yard-service/internal/http/middleware"
	"yard-service/internal/logger"
	"yard-service/internal/ocr"
	"yard-service/internal/ports"
	"yard-service/internal/recognition"
	"yard-service/internal/repository"
	"yard-service/internal/repository/memory"
	"yard-service/internal/service"
	"yard-service/internal/session"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	parkingStore, err := newParkingStore(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to init parking storage")
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to init session store")
	}
	defer closeSessions()

	runner := recognition.NewRunner(sessions, newRecognizer(cfg, appLogger), recognition.Config{
		Workers:   cfg.OCR.Workers,
		QueueSize: cfg.OCR.QueueSize,
		Timeout:   cfg.OCR.Timeout,
	}, appLogger)

	recognitionService := service.NewRecognitionService(sessions, runner)
	parkingService := service.NewParkingService(parkingStore, cfg.Parking.MaxPlateDistance, appLogger)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(recognitionService, parkingService, cfg.HTTP.UploadMaxBytes, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, appLogger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	if memStore, ok := sessions.(*session.MemoryStore); ok {
		g.Go(func() error {
			memStore.Run(gctx, cfg.Session.SweepInterval, appLogger)
			return nil
		})
	}
	g.Go(func() error {
		appLogger.Info().
			Str("addr", addr).
			Str("storage", cfg.Storage.Driver).
			Str("sessions", cfg.Session.Backend).
			Str("ocr_engine", cfg.OCR.Engine).
			Msg("starting yard service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error().Err(err).Msg("yard service stopped with error")
		os.Exit(1)
	}
	appLogger.Info().Msg("yard service stopped")
}

func newParkingStore(cfg *config.Config, log zerolog.Logger) (ports.ParkingUnitOfWork, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		registry := memory.NewRegistry()
		if err := registry.Seed(cfg.Storage.SeedVehicles, cfg.Storage.SeedBoxes); err != nil {
			return nil, err
		}
		log.Warn().Int("vehicles", len(cfg.Storage.SeedVehicles)).Int("boxes", len(cfg.Storage.SeedBoxes)).
			Msg("using in-memory parking registry, data is lost on restart")
		return registry, nil
	}

	database, err := db.New(cfg, log)
	if err != nil {
		return nil, err
	}
	return repository.NewParkingTx(database), nil
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.Session.Backend != config.SessionBackendRedis {
		return session.NewMemoryStore(session.WithTTL(cfg.Session.TTL)), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return session.NewRedisStore(rdb, cfg.Session.TTL), func() { _ = rdb.Close() }, nil
}

func newRecognizer(cfg *config.Config, log zerolog.Logger) ports.Recognizer {
	switch cfg.OCR.Engine {
	case config.OCREngineRemote:
		return client.NewANPRClient(cfg)
	case config.OCREngineTesseract:
		return ocr.NewTesseract(ocr.TesseractConfig{
			Languages:      cfg.OCR.Tesseract.Languages,
			TessdataPrefix: cfg.OCR.Tesseract.TessdataPrefix,
		}, log)
	default:
		return ocr.NewOpenALPR(ocr.OpenALPRConfig{
			Command:        cfg.OCR.ALPR.Command,
			Region:         cfg.OCR.ALPR.Region,
			FallbackRegion: cfg.OCR.ALPR.FallbackRegion,
			TopN:           cfg.OCR.ALPR.TopN,
			MinConfidence:  cfg.OCR.ALPR.MinConfidence,
		}, log)
	}
}
