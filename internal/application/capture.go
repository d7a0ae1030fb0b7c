package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// SourceOpener открывает источник кадров для режима.
type SourceOpener func(mode entity.SourceMode) (port.FrameSource, error)

// CaptureService периодически берёт кадр из текущего источника и проверяет его.
// Смена режима применяется на следующем шаге: старый источник закрывается.
type CaptureService struct {
	inspections *InspectionService
	open        SourceOpener
	interval    time.Duration
	log         *zap.SugaredLogger

	mu         sync.Mutex
	mode       entity.SourceMode
	source     port.FrameSource
	sourceMode entity.SourceMode
}

func NewCaptureService(inspections *InspectionService, open SourceOpener, mode entity.SourceMode, interval time.Duration, log *zap.SugaredLogger) *CaptureService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CaptureService{
		inspections: inspections,
		open:        open,
		interval:    interval,
		mode:        mode,
		log:         log,
	}
}

// Mode текущий режим источника.
func (s *CaptureService) Mode() entity.SourceMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode переключает режим и возвращает новый.
func (s *CaptureService) SetMode(mode entity.SourceMode) entity.SourceMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != mode {
		s.log.Infow("capture mode changed", "from", s.mode, "to", mode)
		s.mode = mode
	}
	return s.mode
}

// Step берёт один кадр и проверяет его.
func (s *CaptureService) Step(ctx context.Context) (*InspectionOutput, error) {
	src, err := s.currentSource()
	if err != nil {
		return nil, err
	}

	frame, err := src.CaptureFrame(ctx)
	if err != nil {
		return nil, err
	}

	return s.inspections.Inspect(ctx, frame, OriginCapture)
}

// Run вызывает Step с заданным интервалом до отмены контекста.
func (s *CaptureService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.Close()

	s.log.Infow("capture loop started", "interval", s.interval, "mode", s.Mode())

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("capture loop stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Step(ctx); err != nil {
				switch {
				case errors.Is(err, context.Canceled):
				case errors.Is(err, port.ErrNoFrame):
					s.log.Debugw("no frame available", "mode", s.Mode())
				default:
					s.log.Warnw("capture step failed", "mode", s.Mode(), "error", err)
				}
			}
		}
	}
}

// Close освобождает текущий источник.
func (s *CaptureService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

func (s *CaptureService) currentSource() (port.FrameSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source != nil && s.sourceMode == s.mode {
		return s.source, nil
	}
	if err := s.releaseLocked(); err != nil {
		s.log.Warnw("failed to release frame source", "mode", s.sourceMode, "error", err)
	}

	src, err := s.open(s.mode)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", s.mode, err)
	}
	s.source = src
	s.sourceMode = s.mode
	return src, nil
}

func (s *CaptureService) releaseLocked() error {
	if s.source == nil {
		return nil
	}
	err := s.source.Release()
	s.source = nil
	return err
}
