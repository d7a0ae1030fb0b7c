package report

import (
	"context"
	"fmt"
	"strings"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// maxListed сколько бракованных ячеек перечислять поимённо.
const maxListed = 10

var statusLabels = map[entity.Status]string{
	entity.StatusApproved:     "годная",
	entity.StatusEmptyCavity:  "пустая ячейка",
	entity.StatusDeformedPill: "деформированная таблетка",
}

// TextDescriber собирает текстовое описание отчёта без внешних сервисов.
type TextDescriber struct{}

// NewTextDescriber создаёт описатель.
func NewTextDescriber() *TextDescriber {
	return &TextDescriber{}
}

// Describe формирует сводку: итог, счётчики по статусам и список брака.
func (d *TextDescriber) Describe(ctx context.Context, r *entity.InspectionReport, batch *entity.InspectionBatch) (*entity.Description, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("report is nil")
	}

	var b strings.Builder

	defects := r.DefectCount()
	switch {
	case len(r.Results) == 0:
		b.WriteString("⚠️ Ячейки не найдены. Проверьте освещение и положение блистера.\n")
	case defects == 0:
		fmt.Fprintf(&b, "✅ Блистер годен: %d из %d ячеек в норме.\n", len(r.Results), len(r.Results))
	default:
		fmt.Fprintf(&b, "❌ Брак: %d из %d ячеек.\n", defects, len(r.Results))
	}

	counts := r.Counts()
	for _, s := range []entity.Status{entity.StatusApproved, entity.StatusEmptyCavity, entity.StatusDeformedPill} {
		if counts[s] > 0 {
			fmt.Fprintf(&b, "• %s: %d\n", statusLabels[s], counts[s])
		}
	}

	listed := 0
	for _, res := range r.Results {
		if !res.Status.IsDefect() {
			continue
		}
		if listed == maxListed {
			fmt.Fprintf(&b, "… и ещё %d\n", defects-maxListed)
			break
		}
		fmt.Fprintf(&b, "#%d %s (площадь %.0f px², округлость %.2f)\n",
			res.ID, statusLabels[res.Status], res.Area, res.Circularity)
		listed++
	}

	fmt.Fprintf(&b, "Контрольный пересчёт: %d", r.QACount)
	if batch != nil {
		fmt.Fprintf(&b, "\nПартия: %s", batch.BatchID)
	}

	return &entity.Description{Text: b.String()}, nil
}

var _ port.ReportDescriber = (*TextDescriber)(nil)
