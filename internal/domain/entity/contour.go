package entity

import (
	"image"
	"math"
)

// Contour замкнутая граница одной связной области маски
type Contour struct {
	Points []image.Point
}

// Area возвращает площадь в px² по формуле шнурков
func (c Contour) Area() float64 {
	n := len(c.Points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		p := c.Points[i]
		q := c.Points[(i+1)%n]
		sum += float64(p.X*q.Y - q.X*p.Y)
	}
	return math.Abs(sum) / 2
}

// Perimeter возвращает длину замкнутой ломаной
func (c Contour) Perimeter() float64 {
	n := len(c.Points)
	if n < 2 {
		return 0
	}
	var length float64
	for i := 0; i < n; i++ {
		p := c.Points[i]
		q := c.Points[(i+1)%n]
		length += math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
	}
	return length
}

// Circularity = 4π·S/P²: 1.0 для круга, меньше для вытянутых форм.
// Для вырожденного контура с нулевым периметром возвращает 0.
func (c Contour) Circularity() float64 {
	return CircularityOf(c.Area(), c.Perimeter())
}

// CircularityOf считает округлость по готовым площади и периметру
func CircularityOf(area, perimeter float64) float64 {
	if perimeter <= 0 {
		return 0
	}
	return 4 * math.Pi * area / (perimeter * perimeter)
}

// BoundingBox возвращает минимальный прямоугольник, содержащий все точки.
// Max не включается, поэтому одна точка даёт рамку 1×1.
func (c Contour) BoundingBox() image.Rectangle {
	if len(c.Points) == 0 {
		return image.Rectangle{}
	}
	box := image.Rectangle{Min: c.Points[0], Max: c.Points[0]}
	for _, p := range c.Points[1:] {
		box.Min.X = min(box.Min.X, p.X)
		box.Min.Y = min(box.Min.Y, p.Y)
		box.Max.X = max(box.Max.X, p.X)
		box.Max.Y = max(box.Max.Y, p.Y)
	}
	box.Max = box.Max.Add(image.Pt(1, 1))
	return box
}
