//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"blister-inspector/internal/domain/port"
)

// CameraSource читает кадры с локальной камеры.
type CameraSource struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	frame  gocv.Mat
	index  int
	log    *zap.SugaredLogger
	closed bool
}

// NewCameraSource открывает камеру с указанным индексом.
func NewCameraSource(index int, log *zap.SugaredLogger) (*CameraSource, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	vc, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device is not available", index)
	}
	log.Infow("camera opened", "index", index)
	return &CameraSource{cap: vc, frame: gocv.NewMat(), index: index, log: log}, nil
}

// CaptureFrame читает кадр и возвращает его в JPEG.
func (c *CameraSource) CaptureFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, port.ErrNoFrame
	}
	if ok := c.cap.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, port.ErrNoFrame
	}
	return encodeJPEG(c.frame)
}

// Release закрывает устройство, повторный вызов ничего не делает.
func (c *CameraSource) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.frame.Close()
	if err := c.cap.Close(); err != nil {
		return fmt.Errorf("close camera %d: %w", c.index, err)
	}
	c.log.Infow("camera released", "index", c.index)
	return nil
}

var _ port.FrameSource = (*CameraSource)(nil)
