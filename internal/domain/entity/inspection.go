package entity

import (
	"math"
	"time"
)

// Ключи снимков читает слой отображения, менять их нельзя
const (
	SnapshotOriginal      = "original"
	SnapshotGrayscale     = "grayscale"
	SnapshotThresholded   = "thresholded"
	SnapshotFinalContours = "final_contours"
)

// SnapshotKeys ключи снимков в порядке шагов конвейера
var SnapshotKeys = []string{SnapshotOriginal, SnapshotGrayscale, SnapshotThresholded, SnapshotFinalContours}

// InspectionResult результат проверки одного контура
type InspectionResult struct {
	ID          int     `json:"id"`
	Area        float64 `json:"area"`
	Circularity float64 `json:"circularity"`
	Status      Status  `json:"status"`
}

// Detection связывает результат с исходным контуром
type Detection struct {
	Contour Contour
	Result  InspectionResult
}

// ResultsOf отбрасывает контуры и оставляет только результаты
func ResultsOf(detections []Detection) []InspectionResult {
	results := make([]InspectionResult, 0, len(detections))
	for _, d := range detections {
		results = append(results, d.Result)
	}
	return results
}

// RoundArea округляет площадь до двух знаков
func RoundArea(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundCircularity округляет округлость до четырёх знаков
func RoundCircularity(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Snapshot закодированное диагностическое изображение одного шага
type Snapshot struct {
	Key  string
	JPEG []byte
}

// InspectionReport итог обработки одного кадра
type InspectionReport struct {
	Width     int
	Height    int
	Results   []InspectionResult // по убыванию площади
	QACount   int                // рамки контрольного пересчёта, не число дефектов
	Snapshots []Snapshot
	Final     []byte // JPEG итогового диагностического кадра
}

// Snapshot возвращает снимок по ключу
func (r *InspectionReport) Snapshot(key string) ([]byte, bool) {
	for _, s := range r.Snapshots {
		if s.Key == key {
			return s.JPEG, true
		}
	}
	return nil, false
}

// Counts считает результаты по статусам
func (r *InspectionReport) Counts() map[Status]int {
	counts := make(map[Status]int, len(statusNames))
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// DefectCount число отбракованных ячеек
func (r *InspectionReport) DefectCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Status.IsDefect() {
			n++
		}
	}
	return n
}

// InspectionBatch партия результатов одного кадра
type InspectionBatch struct {
	BatchID   string             `json:"batch_id"`
	Timestamp time.Time          `json:"timestamp"`
	Results   []InspectionResult `json:"results"`
}

// NewInspectionBatch создаёт партию с копией результатов
func NewInspectionBatch(id string, ts time.Time, results []InspectionResult) *InspectionBatch {
	owned := make([]InspectionResult, len(results))
	copy(owned, results)
	return &InspectionBatch{BatchID: id, Timestamp: ts, Results: owned}
}

// Records разворачивает партию в строки журнала
func (b *InspectionBatch) Records() []InspectionRecord {
	records := make([]InspectionRecord, 0, len(b.Results))
	for _, res := range b.Results {
		records = append(records, InspectionRecord{
			BatchID:     b.BatchID,
			Timestamp:   b.Timestamp,
			ContourID:   res.ID,
			AreaPx:      res.Area,
			Circularity: res.Circularity,
			Status:      res.Status,
			DefectType:  res.Status.DefectType(),
		})
	}
	return records
}

// InspectionRecord одна строка журнала инспекций
type InspectionRecord struct {
	BatchID     string    `json:"batch_id"`
	Timestamp   time.Time `json:"timestamp"`
	ContourID   int       `json:"contour_id"`
	AreaPx      float64   `json:"area_px"`
	Circularity float64   `json:"circularity"`
	Status      Status    `json:"status"`
	DefectType  string    `json:"defect_type"`
}

// Description текстовое описание результата проверки
type Description struct {
	Text string
}
