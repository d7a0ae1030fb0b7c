//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

const jpegQuality = 95

// Inspector декодирует байты кадра и прогоняет их через Pipeline.
type Inspector struct {
	pipeline *Pipeline
}

// NewInspector создаёт инспектор с конвейером по конфигурации.
func NewInspector(cfg entity.InspectionConfig, log *zap.SugaredLogger) (*Inspector, error) {
	p, err := NewPipeline(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Inspector{pipeline: p}, nil
}

// Inspect анализирует изображение и возвращает отчёт с закодированными снимками.
func (i *Inspector) Inspect(ctx context.Context, imageData []byte) (*entity.InspectionReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	out := i.pipeline.ProcessFrame(mat)
	defer out.Close()

	report := &entity.InspectionReport{
		Width:   mat.Cols(),
		Height:  mat.Rows(),
		Results: out.Results,
		QACount: out.QACount,
	}

	for _, key := range entity.SnapshotKeys {
		m, ok := out.Snapshots[key]
		if !ok {
			continue
		}
		data, err := encodeJPEG(m)
		if err != nil {
			return nil, fmt.Errorf("encode %s snapshot: %w", key, err)
		}
		report.Snapshots = append(report.Snapshots, entity.Snapshot{Key: key, JPEG: data})
	}

	if report.Final, err = encodeJPEG(out.Final); err != nil {
		return nil, fmt.Errorf("encode final frame: %w", err)
	}

	return report, nil
}

// decodeToMat превращает байты изображения в gocv.Mat.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	if len(imageData) == 0 {
		return gocv.NewMat(), ErrUnreadableImage
	}
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	mat.Close()
	return gocv.NewMat(), ErrUnreadableImage
}

// encodeJPEG кодирует кадр в JPEG, одноканальные кадры сначала переводит в BGR.
func encodeJPEG(m gocv.Mat) ([]byte, error) {
	src := m
	if m.Channels() == 1 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(m, &bgr, gocv.ColorGrayToBGR)
		src = bgr
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, src, []int{int(gocv.IMWriteJpegQuality), jpegQuality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// Проверка реализации интерфейса
var _ port.FrameInspector = (*Inspector)(nil)
