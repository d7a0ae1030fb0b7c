// Package classifier выносит вердикт по ячейке блистера только по геометрии контура.
package classifier

import (
	"sort"

	"blister-inspector/internal/domain/entity"
)

// Classify классифицирует контуры и возвращает результаты по убыванию площади с id 1..N.
func Classify(contours []entity.Contour, cfg entity.ClassificationConfig) []entity.InspectionResult {
	return entity.ResultsOf(Rank(ClassifyContours(contours, cfg)))
}

// ClassifyContours применяет пороги к каждому контуру в исходном порядке.
// Отброшенные контуры в выдачу не попадают, id не присваиваются.
func ClassifyContours(contours []entity.Contour, cfg entity.ClassificationConfig) []entity.Detection {
	detections := make([]entity.Detection, 0, len(contours))
	for _, c := range contours {
		area := c.Area()
		circularity := c.Circularity()

		status, keep := decide(area, circularity, cfg)
		if !keep {
			continue
		}

		detections = append(detections, entity.Detection{
			Contour: c,
			Result: entity.InspectionResult{
				Area:        entity.RoundArea(area),
				Circularity: entity.RoundCircularity(circularity),
				Status:      status,
			},
		})
	}
	return detections
}

// decide порядок проверок важен: площадь раньше округлости.
func decide(area, circularity float64, cfg entity.ClassificationConfig) (entity.Status, bool) {
	switch {
	case area < cfg.AreaMin:
		if area > cfg.NoiseFloor {
			return entity.StatusEmptyCavity, true
		}
		return entity.StatusUnknown, false
	case area > cfg.AreaMax:
		return entity.StatusUnknown, false
	case circularity < cfg.CircularityThreshold:
		return entity.StatusDeformedPill, true
	default:
		return entity.StatusApproved, true
	}
}

// Rank возвращает копию, отсортированную по убыванию площади (равные сохраняют порядок),
// и нумерует результаты с единицы.
func Rank(detections []entity.Detection) []entity.Detection {
	ranked := make([]entity.Detection, len(detections))
	copy(ranked, detections)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Result.Area > ranked[j].Result.Area
	})
	for i := range ranked {
		ranked[i].Result.ID = i + 1
	}
	return ranked
}
