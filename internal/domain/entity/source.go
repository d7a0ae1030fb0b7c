package entity

import "fmt"

// SourceMode откуда берутся кадры для цикла захвата
type SourceMode string

const (
	ModeMock   SourceMode = "mock"   // папка с образцами
	ModeCamera SourceMode = "camera" // камера через OpenCV
)

// ModeFromCamera переводит флаг use_camera в режим
func ModeFromCamera(useCamera bool) SourceMode {
	if useCamera {
		return ModeCamera
	}
	return ModeMock
}

// ParseSourceMode проверяет имя режима
func ParseSourceMode(s string) (SourceMode, error) {
	switch SourceMode(s) {
	case ModeMock, ModeCamera:
		return SourceMode(s), nil
	}
	return "", fmt.Errorf("unknown source mode %q", s)
}

// LiveEvent сводка по партии для подписчиков живой ленты
type LiveEvent struct {
	Type      string         `json:"type"`
	Origin    string         `json:"origin"`
	BatchID   string         `json:"batch_id"`
	Timestamp int64          `json:"timestamp"`
	Total     int            `json:"total"`
	Defects   int            `json:"defects"`
	QACount   int            `json:"qa_count"`
	Counts    map[string]int `json:"counts"`
	Thumbnail string         `json:"thumbnail,omitempty"` // data URL с уменьшенным кадром
}

// NewLiveEvent собирает событие из партии и отчёта
func NewLiveEvent(origin string, batch *InspectionBatch, report *InspectionReport) LiveEvent {
	ev := LiveEvent{
		Type:   "inspection",
		Origin: origin,
		Counts: make(map[string]int),
	}
	if batch != nil {
		ev.BatchID = batch.BatchID
		ev.Timestamp = batch.Timestamp.UnixMilli()
	}
	if report != nil {
		ev.Total = len(report.Results)
		ev.Defects = report.DefectCount()
		ev.QACount = report.QACount
		for status, n := range report.Counts() {
			ev.Counts[status.String()] = n
		}
	}
	return ev
}
