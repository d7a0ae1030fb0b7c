//go:build gocv
// +build gocv

package vision

import (
	"image"
	"image/color"
	"strconv"

	"gocv.io/x/gocv"

	"blister-inspector/internal/domain/entity"
)

var (
	red       = color.RGBA{R: 255, A: 255}
	green     = color.RGBA{G: 255, A: 255}
	darkGreen = color.RGBA{G: 100, A: 255}
	white     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Annotate рисует контуры поверх копии кадра: брак красным, годные зелёным,
// рядом с левым верхним углом рамки пишет id результата.
func Annotate(frame gocv.Mat, detections []entity.Detection) gocv.Mat {
	out := frame.Clone()
	for _, d := range detections {
		c := green
		if d.Result.Status.IsDefect() {
			c = red
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{d.Contour.Points})
		gocv.DrawContours(&out, pv, -1, c, 3)
		pv.Close()

		box := d.Contour.BoundingBox()
		gocv.PutText(&out, strconv.Itoa(d.Result.ID), labelOrigin(box), gocv.FontHersheySimplex, 0.6, c, 2)
	}
	return out
}

// RecountContours контрольный пересчёт по уже размеченному кадру:
// порог по яркости 10, рамка и номер вокруг каждого внешнего контура.
// Число рамок не является числом дефектов.
func RecountContours(annotated gocv.Mat) (gocv.Mat, int) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(annotated, &gray, gocv.ColorBGRToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, 10, 255, gocv.ThresholdBinary)

	found := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	out := annotated.Clone()
	for i := 0; i < found.Size(); i++ {
		rect := gocv.BoundingRect(found.At(i))
		gocv.Rectangle(&out, rect, red, 2)
		gocv.PutText(&out, strconv.Itoa(i+1), image.Pt(rect.Min.X, rect.Min.Y-5), gocv.FontHersheySimplex, 0.5, red, 2)
	}
	return out, found.Size()
}

// invert побитовая инверсия цветов для итогового кадра.
func invert(src gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	gocv.BitwiseNot(src, &out)
	return out
}

func labelOrigin(box image.Rectangle) image.Point {
	y := box.Min.Y - 8
	if y < 12 {
		y = box.Min.Y + 16
	}
	return image.Pt(box.Min.X, y)
}
