//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"blister-inspector/internal/domain/entity"
)

// Размер маски, когда размер кадра неизвестен (rows × cols).
const (
	fallbackRows = 480
	fallbackCols = 640
)

// Segmenter строит бинарную маску кандидатов в таблетки.
// Возвращаемая маска CV_8UC1 с значениями 0/255, закрывает её вызывающий.
type Segmenter interface {
	Name() string
	Segment(frame gocv.Mat) gocv.Mat
}

// NewSegmenter выбирает стратегию по конфигурации.
func NewSegmenter(cfg entity.SegmentationConfig, log *zap.SugaredLogger) (Segmenter, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	switch cfg.Strategy {
	case entity.StrategyColorRange:
		return &ColorRangeSegmenter{Colors: cfg.Colors, log: log}, nil
	case entity.StrategyContrastAdaptive:
		return &ContrastAdaptiveSegmenter{Shape: cfg.Shape, log: log}, nil
	default:
		return nil, fmt.Errorf("%w: unknown segmentation strategy %q", entity.ErrInvalidConfig, cfg.Strategy)
	}
}

// guard отдаёт нулевую маску вместо пустого кадра и вместо паники внутри стратегии.
func guard(name string, log *zap.SugaredLogger, frame gocv.Mat, run func(bgr gocv.Mat) gocv.Mat) (mask gocv.Mat) {
	if frame.Empty() || frame.Rows() == 0 || frame.Cols() == 0 {
		log.Warnw("segmentation skipped: empty frame", "strategy", name)
		return zeroMaskFor(frame)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warnw("segmentation failed, using empty mask", "strategy", name, "panic", r)
			mask = zeroMaskFor(frame)
		}
	}()

	bgr, ok := toBGR(frame)
	defer bgr.Close()
	if !ok {
		log.Warnw("segmentation skipped: unsupported frame", "strategy", name,
			"channels", frame.Channels(), "type", frame.Type())
		return zeroMaskFor(frame)
	}

	return run(bgr)
}

// zeroMaskFor нулевая маска размером с кадр или запасного размера.
func zeroMaskFor(frame gocv.Mat) gocv.Mat {
	rows, cols := fallbackRows, fallbackCols
	if !frame.Empty() && frame.Rows() > 0 && frame.Cols() > 0 {
		rows, cols = frame.Rows(), frame.Cols()
	}
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
}

func is8Bit(m gocv.Mat) bool {
	return int(m.Type())&7 == 0
}

// toBGR приводит кадр к 8-битному BGR. Результат всегда новая Mat.
func toBGR(frame gocv.Mat) (gocv.Mat, bool) {
	src := frame
	if !is8Bit(frame) {
		converted := gocv.NewMat()
		frame.ConvertTo(&converted, gocv.MatTypeCV8U)
		defer converted.Close()
		src = converted
	}

	out := gocv.NewMat()
	switch src.Channels() {
	case 3:
		src.CopyTo(&out)
	case 1:
		gocv.CvtColor(src, &out, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(src, &out, gocv.ColorBGRAToBGR)
	default:
		return out, false
	}
	return out, true
}

func toGray(bgr gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray
}

// ColorRangeSegmenter выделяет таблетки по диапазонам цвета в HSV.
type ColorRangeSegmenter struct {
	Colors entity.ColorRanges
	log    *zap.SugaredLogger
}

func (s *ColorRangeSegmenter) Name() string { return string(entity.StrategyColorRange) }

func (s *ColorRangeSegmenter) Segment(frame gocv.Mat) gocv.Mat {
	return guard(s.Name(), s.log, frame, s.segment)
}

func (s *ColorRangeSegmenter) segment(bgr gocv.Mat) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	combined := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), bgr.Rows(), bgr.Cols(), gocv.MatTypeCV8UC1)
	defer combined.Close()

	part := gocv.NewMat()
	defer part.Close()
	for _, r := range s.Colors.All() {
		lo := gocv.NewScalar(r.Min.H, r.Min.S, r.Min.V, 0)
		hi := gocv.NewScalar(r.Max.H, r.Max.S, r.Max.V, 0)
		gocv.InRangeWithScalar(hsv, lo, hi, &part)
		gocv.BitwiseOr(combined, part, &combined)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	// закрытие заделывает блики внутри таблетки, открытие убирает точки фона
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(combined, &closed, gocv.MorphClose, kernel)

	mask := gocv.NewMat()
	gocv.MorphologyEx(closed, &mask, gocv.MorphOpen, kernel)
	return mask
}

// ContrastAdaptiveSegmenter выделяет таблетки по локальному контрасту
// и оставляет только области подходящей формы.
type ContrastAdaptiveSegmenter struct {
	Shape entity.ShapeFilter
	log   *zap.SugaredLogger
}

func (s *ContrastAdaptiveSegmenter) Name() string { return string(entity.StrategyContrastAdaptive) }

func (s *ContrastAdaptiveSegmenter) Segment(frame gocv.Mat) gocv.Mat {
	return guard(s.Name(), s.log, frame, s.segment)
}

func (s *ContrastAdaptiveSegmenter) segment(bgr gocv.Mat) gocv.Mat {
	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.BilateralFilter(bgr, &denoised, 9, 75, 75)

	clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
	defer clahe.Close()

	equalized := equalizeLuminance(denoised, clahe)
	defer equalized.Close()

	gray := toGray(equalized)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	local := gocv.NewMat()
	defer local.Close()
	clahe.Apply(blurred, &local)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(local, &binary, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, 11, 2)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer kernel.Close()

	// открытие ×2, закрытие ×3, затем эрозия ×1 и дилатация ×2
	work := binary.Clone()
	defer func() { work.Close() }()
	steps := []struct {
		erode bool
		times int
	}{
		{true, 2}, {false, 2},
		{false, 3}, {true, 3},
		{true, 1}, {false, 2},
	}
	for _, st := range steps {
		for i := 0; i < st.times; i++ {
			next := gocv.NewMat()
			if st.erode {
				gocv.Erode(work, &next, kernel)
			} else {
				gocv.Dilate(work, &next, kernel)
			}
			work.Close()
			work = next
		}
	}

	filtered := s.keepPillShapes(work)
	defer filtered.Close()

	mask := gocv.NewMat()
	gocv.MedianBlur(filtered, &mask, 5)
	return mask
}

// keepPillShapes рисует залитыми только контуры, прошедшие фильтр формы.
func (s *ContrastAdaptiveSegmenter) keepPillShapes(binary gocv.Mat) gocv.Mat {
	out := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), binary.Rows(), binary.Cols(), gocv.MatTypeCV8UC1)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	kept := make([][]image.Point, 0, contours.Size())
	for _, pts := range contours.ToPoints() {
		c := entity.Contour{Points: pts}
		if s.Shape.Accepts(c.Area(), c.Circularity()) {
			kept = append(kept, pts)
		}
	}
	if len(kept) == 0 {
		return out
	}

	pv := gocv.NewPointsVectorFromPoints(kept)
	defer pv.Close()
	gocv.DrawContours(&out, pv, -1, white, -1)
	return out
}

// equalizeLuminance применяет CLAHE к каналу L пространства Lab.
func equalizeLuminance(bgr gocv.Mat, clahe gocv.CLAHE) gocv.Mat {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(bgr, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	l := gocv.NewMat()
	clahe.Apply(channels[0], &l)
	channels[0].Close()
	channels[0] = l

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(channels, &merged)

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorLabToBGR)
	return out
}
