package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blister-inspector/config"
	httpapi "blister-inspector/internal/api/http"
	"blister-inspector/internal/api/telegram"
	"blister-inspector/internal/container"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/infrastructure/hub"
	"blister-inspector/internal/infrastructure/report"
	"blister-inspector/internal/infrastructure/source"
	"blister-inspector/internal/infrastructure/storage"
	"blister-inspector/internal/infrastructure/storage/sqlite"
	"blister-inspector/internal/infrastructure/vision"
	"blister-inspector/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	if err := run(cfg, logg); err != nil {
		logg.Errorw("inspector stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, closeJournal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal()

	inspector, err := vision.NewInspector(cfg.Inspection, logg)
	if err != nil {
		return fmt.Errorf("create inspector: %w", err)
	}

	live := hub.New(logg)

	// Собираем сервисы приложения
	appContainer := container.New(container.Deps{
		UserRepo:        storage.NewMemoryUserRepository(),
		Inspector:       inspector,
		Describer:       report.NewTextDescriber(),
		Journal:         journal,
		Publisher:       live,
		OpenSource:      sourceOpener(cfg, logg),
		Mode:            cfg.Mode(),
		CaptureInterval: cfg.CaptureInterval,
		Logger:          logg,
	})
	defer appContainer.CaptureService.Close()

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Inspections:    appContainer.InspectionService,
			Capture:        appContainer.CaptureService,
			Live:           live.Handler(),
			ResultsDir:     cfg.ResultsDir,
			MaxUploadBytes: cfg.MaxUploadBytes,
			Version:        cfg.Version,
			Logger:         logg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logg.Infow("inspector starting",
		"version", cfg.Version,
		"addr", cfg.HTTPAddr,
		"mode", cfg.Mode(),
		"strategy", cfg.Inspection.Segmentation.Strategy,
		"log_backend", cfg.LogBackend,
		"capture", cfg.CaptureEnabled,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return live.Run(gctx) })

	g.Go(func() error {
		logg.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Warnw("graceful shutdown failed", "error", err)
			return server.Close()
		}
		return nil
	})

	if cfg.CaptureEnabled {
		g.Go(func() error { return appContainer.CaptureService.Run(gctx) })
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, logg)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error { return bot.Run(gctx) })
	} else {
		logg.Infow("TELEGRAM_TOKEN is not set, bot disabled")
	}

	err = g.Wait()
	logg.Infow("inspector stopped")
	return err
}

func openJournal(cfg *config.Config) (port.InspectionLog, func(), error) {
	switch cfg.LogBackend {
	case config.BackendSQLite:
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewInspectionLog(db), func() { db.Close() }, nil
	default:
		journal, err := storage.NewJSONLog(cfg.InspectionLogPath)
		if err != nil {
			return nil, nil, err
		}
		return journal, func() {}, nil
	}
}

func sourceOpener(cfg *config.Config, logg *zap.SugaredLogger) func(entity.SourceMode) (port.FrameSource, error) {
	return func(mode entity.SourceMode) (port.FrameSource, error) {
		if mode == entity.ModeCamera {
			cam, err := vision.NewCameraSource(cfg.CameraIndex, logg)
			if err != nil {
				return nil, err
			}
			return cam, nil
		}
		folder, err := source.NewFolderSource(cfg.SampleDir, logg)
		if err != nil {
			return nil, err
		}
		return folder, nil
	}
}
