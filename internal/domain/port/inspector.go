package port

import (
	"context"
	"errors"

	"blister-inspector/internal/domain/entity"
)

// ErrNoFrame источник сейчас не может отдать кадр
var ErrNoFrame = errors.New("no frame available")

// FrameInspector интерфейс конвейера инспекции
type FrameInspector interface {
	// Inspect декодирует кадр, прогоняет конвейер и возвращает отчёт со снимками
	Inspect(ctx context.Context, imageData []byte) (*entity.InspectionReport, error)
}

// FrameSource источник кадров: камера или папка с образцами
type FrameSource interface {
	// CaptureFrame возвращает следующий кадр в виде закодированного изображения
	CaptureFrame(ctx context.Context) ([]byte, error)

	// Release освобождает устройство
	Release() error
}
