//go:build gocv
// +build gocv

package vision

import (
	"image"

	"gocv.io/x/gocv"

	"blister-inspector/internal/domain/entity"
)

// ExtractContours находит внешние контуры маски после открытия 5×5.
// Порядок контуров тот, в котором их вернул FindContours.
func ExtractContours(mask gocv.Mat) []entity.Contour {
	if mask.Empty() {
		return nil
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(5, 5))
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(mask, &opened, gocv.MorphOpen, kernel)

	found := gocv.FindContours(opened, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]entity.Contour, 0, found.Size())
	for _, pts := range found.ToPoints() {
		contours = append(contours, entity.Contour{Points: pts})
	}
	return contours
}
