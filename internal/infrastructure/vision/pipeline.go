//go:build gocv
// +build gocv

package vision

import (
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"blister-inspector/internal/domain/classifier"
	"blister-inspector/internal/domain/entity"
)

// Площади, которые заливаются на наложении порога.
const (
	overlayMinArea = 300
	overlayMaxArea = 50000
)

// Snapshots промежуточные кадры конвейера по ключам entity.Snapshot*.
type Snapshots map[string]gocv.Mat

// Close освобождает все кадры.
func (s Snapshots) Close() {
	for k, m := range s {
		m.Close()
		delete(s, k)
	}
}

// FrameOutput результат ProcessFrame. Кадры принадлежат вызывающему.
type FrameOutput struct {
	Final     gocv.Mat
	Snapshots Snapshots
	Results   []entity.InspectionResult
	QACount   int
}

// Close освобождает итоговый кадр и снимки.
func (o *FrameOutput) Close() {
	o.Final.Close()
	o.Snapshots.Close()
}

// Pipeline собирает сегментацию, контуры, классификацию и разметку в один проход.
// Не хранит состояния между кадрами, безопасен для параллельных вызовов.
type Pipeline struct {
	cfg       entity.InspectionConfig
	segmenter Segmenter
	log       *zap.SugaredLogger
}

// NewPipeline проверяет конфигурацию и создаёт конвейер.
func NewPipeline(cfg entity.InspectionConfig, log *zap.SugaredLogger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seg, err := NewSegmenter(cfg.Segmentation, log)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, segmenter: seg, log: log}, nil
}

// Config возвращает копию конфигурации конвейера.
func (p *Pipeline) Config() entity.InspectionConfig {
	return p.cfg
}

// ProcessFrame обрабатывает кадр. Для пустого кадра возвращает пустой итог
// без снимков и результатов.
func (p *Pipeline) ProcessFrame(frame gocv.Mat) FrameOutput {
	out := FrameOutput{
		Final:     gocv.NewMat(),
		Snapshots: Snapshots{},
		Results:   []entity.InspectionResult{},
	}
	if frame.Empty() {
		return out
	}

	bgr, ok := toBGR(frame)
	defer bgr.Close()
	if !ok {
		p.log.Warnw("frame skipped: unsupported channel count", "channels", frame.Channels())
		return out
	}

	out.Snapshots[entity.SnapshotOriginal] = bgr.Clone()

	gray := toGray(bgr)
	defer gray.Close()
	grayBGR := gocv.NewMat()
	defer grayBGR.Close()
	gocv.CvtColor(gray, &grayBGR, gocv.ColorGrayToBGR)
	out.Snapshots[entity.SnapshotGrayscale] = grayBGR.Clone()

	mask := p.segmenter.Segment(bgr)
	defer mask.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(mask, &binary, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	overlay := thresholdOverlay(binary)
	defer overlay.Close()
	blended := gocv.NewMat()
	gocv.AddWeighted(grayBGR, 0.7, overlay, 0.3, 0, &blended)
	out.Snapshots[entity.SnapshotThresholded] = blended

	detections := classifier.Rank(classifier.ClassifyContours(ExtractContours(binary), p.cfg.Classification))

	annotated := Annotate(bgr, detections)
	defer annotated.Close()
	qa, count := RecountContours(annotated)
	defer qa.Close()

	out.Final.Close()
	out.Final = invert(qa)
	out.Snapshots[entity.SnapshotFinalContours] = out.Final.Clone()
	out.Results = entity.ResultsOf(detections)
	out.QACount = count

	p.log.Debugw("frame processed",
		"strategy", p.segmenter.Name(),
		"results", len(out.Results),
		"qa_count", count,
	)
	return out
}

// thresholdOverlay обводит контуры маски зелёным и заливает тёмно-зелёным
// области подходящего размера.
func thresholdOverlay(binary gocv.Mat) gocv.Mat {
	overlay := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), binary.Rows(), binary.Cols(), gocv.MatTypeCV8UC3)

	found := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()
	if found.Size() == 0 {
		return overlay
	}
	gocv.DrawContours(&overlay, found, -1, green, 2)

	for i := 0; i < found.Size(); i++ {
		area := gocv.ContourArea(found.At(i))
		if area > overlayMinArea && area < overlayMaxArea {
			gocv.DrawContours(&overlay, found, i, darkGreen, -1)
		}
	}
	return overlay
}
