//go:build !gocv
// +build !gocv

package vision

import (
	"context"

	"go.uber.org/zap"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// Inspector заглушка для сборки без OpenCV.
type Inspector struct {
	cfg entity.InspectionConfig
}

// NewInspector проверяет конфигурацию и создаёт инспектор-заглушку (без OpenCV).
func NewInspector(cfg entity.InspectionConfig, log *zap.SugaredLogger) (*Inspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log != nil {
		log.Warnw("built without gocv tag, inspection is disabled")
	}
	return &Inspector{cfg: cfg}, nil
}

// Inspect возвращает ошибку, если сборка без тега gocv.
func (i *Inspector) Inspect(ctx context.Context, imageData []byte) (*entity.InspectionReport, error) {
	_ = ctx
	_ = imageData
	return nil, ErrGoCVDisabled
}

// CameraSource заглушка камеры.
type CameraSource struct{}

// NewCameraSource возвращает ошибку, если сборка без тега gocv.
func NewCameraSource(index int, log *zap.SugaredLogger) (*CameraSource, error) {
	_ = index
	_ = log
	return nil, ErrGoCVDisabled
}

// CaptureFrame возвращает ошибку, если сборка без тега gocv.
func (c *CameraSource) CaptureFrame(ctx context.Context) ([]byte, error) {
	return nil, ErrGoCVDisabled
}

// Release ничего не делает.
func (c *CameraSource) Release() error { return nil }

var (
	_ port.FrameInspector = (*Inspector)(nil)
	_ port.FrameSource    = (*CameraSource)(nil)
)
