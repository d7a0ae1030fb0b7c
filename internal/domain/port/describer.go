package port

import (
	"context"

	"blister-inspector/internal/domain/entity"
)

// ReportDescriber интерфейс описателя результатов проверки
type ReportDescriber interface {
	// Describe генерирует текстовое описание отчёта для оператора
	Describe(ctx context.Context, report *entity.InspectionReport, batch *entity.InspectionBatch) (*entity.Description, error)
}
