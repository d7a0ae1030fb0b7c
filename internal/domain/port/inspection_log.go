package port

import (
	"context"

	"blister-inspector/internal/domain/entity"
)

// InspectionLog журнал инспекций
type InspectionLog interface {
	// SaveBatch присваивает партии id и время и сохраняет её строки
	SaveBatch(ctx context.Context, results []entity.InspectionResult) (*entity.InspectionBatch, error)

	// Records возвращает последние limit строк, limit <= 0 означает все
	Records(ctx context.Context, limit int) ([]entity.InspectionRecord, error)
}

// BatchPublisher рассылает сводки по партиям подписчикам
type BatchPublisher interface {
	PublishInspection(ctx context.Context, origin string, batch *entity.InspectionBatch, report *entity.InspectionReport) error
}
