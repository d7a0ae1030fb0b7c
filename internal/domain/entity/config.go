package entity

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig некорректная конфигурация инспекции
var ErrInvalidConfig = errors.New("invalid inspection config")

// SegmentationStrategy имя алгоритма построения маски
type SegmentationStrategy string

const (
	StrategyColorRange       SegmentationStrategy = "color_range"
	StrategyContrastAdaptive SegmentationStrategy = "contrast_adaptive"
)

// HSV точка в 8-битном HSV OpenCV (H 0-180, S и V 0-255)
type HSV struct {
	H float64 `yaml:"h"`
	S float64 `yaml:"s"`
	V float64 `yaml:"v"`
}

// HSVRange диапазон HSV, границы включаются
type HSVRange struct {
	Min HSV `yaml:"min"`
	Max HSV `yaml:"max"`
}

func (r HSVRange) validate(name string) error {
	if r.Min.H > r.Max.H || r.Min.S > r.Max.S || r.Min.V > r.Max.V {
		return fmt.Errorf("%w: %s range min exceeds max", ErrInvalidConfig, name)
	}
	if r.Max.H > 180 || r.Max.S > 255 || r.Max.V > 255 || r.Min.H < 0 || r.Min.S < 0 || r.Min.V < 0 {
		return fmt.Errorf("%w: %s range outside HSV bounds", ErrInvalidConfig, name)
	}
	return nil
}

// ColorRanges цвета таблеток для стратегии color_range
type ColorRanges struct {
	Red    HSVRange `yaml:"red"`
	Orange HSVRange `yaml:"orange"`
	Yellow HSVRange `yaml:"yellow"`
	White  HSVRange `yaml:"white"`
}

// All возвращает диапазоны в порядке объединения масок
func (c ColorRanges) All() [4]HSVRange {
	return [4]HSVRange{c.Red, c.Orange, c.Yellow, c.White}
}

// ShapeFilter границы областей для стратегии contrast_adaptive
type ShapeFilter struct {
	MinArea        float64 `yaml:"min_area"`
	MaxArea        float64 `yaml:"max_area"`
	MinCircularity float64 `yaml:"min_circularity"`
	MaxCircularity float64 `yaml:"max_circularity"`
}

// Accepts проверяет, что площадь и округлость внутри границ
func (f ShapeFilter) Accepts(area, circularity float64) bool {
	return area >= f.MinArea && area <= f.MaxArea &&
		circularity >= f.MinCircularity && circularity <= f.MaxCircularity
}

// SegmentationConfig выбор и параметры сегментатора
type SegmentationConfig struct {
	Strategy SegmentationStrategy `yaml:"strategy"`
	Colors   ColorRanges          `yaml:"colors"`
	Shape    ShapeFilter          `yaml:"shape"`
}

// ClassificationConfig геометрические пороги классификатора
type ClassificationConfig struct {
	AreaMin              float64 `yaml:"area_min"`
	AreaMax              float64 `yaml:"area_max"`
	NoiseFloor           float64 `yaml:"noise_floor"`
	CircularityThreshold float64 `yaml:"circularity_threshold"`
}

// InspectionConfig передаётся в конвейер по значению и после этого не меняется
type InspectionConfig struct {
	Segmentation   SegmentationConfig   `yaml:"segmentation"`
	Classification ClassificationConfig `yaml:"classification"`
}

// DefaultColorRanges диапазоны для красных и оранжевых капсул, жёлтых и белых таблеток
func DefaultColorRanges() ColorRanges {
	return ColorRanges{
		Red:    HSVRange{Min: HSV{0, 100, 100}, Max: HSV{10, 255, 255}},
		Orange: HSVRange{Min: HSV{10, 100, 100}, Max: HSV{25, 255, 255}},
		Yellow: HSVRange{Min: HSV{20, 100, 100}, Max: HSV{40, 255, 255}},
		White:  HSVRange{Min: HSV{0, 0, 180}, Max: HSV{180, 50, 255}},
	}
}

// DefaultShapeFilter оставляет круглые области размером с таблетку
func DefaultShapeFilter() ShapeFilter {
	return ShapeFilter{MinArea: 1000, MaxArea: 20000, MinCircularity: 0.6, MaxCircularity: 1.4}
}

// DefaultClassificationConfig рабочие пороги по умолчанию
func DefaultClassificationConfig() ClassificationConfig {
	return ClassificationConfig{
		AreaMin:              8000,
		AreaMax:              40000,
		NoiseFloor:           3000,
		CircularityThreshold: 0.50,
	}
}

// DefaultInspectionConfig сегментация color_range и пороги по умолчанию
func DefaultInspectionConfig() InspectionConfig {
	return InspectionConfig{
		Segmentation: SegmentationConfig{
			Strategy: StrategyColorRange,
			Colors:   DefaultColorRanges(),
			Shape:    DefaultShapeFilter(),
		},
		Classification: DefaultClassificationConfig(),
	}
}

// Validate проверяет пороги классификации
func (c ClassificationConfig) Validate() error {
	switch {
	case c.NoiseFloor < 0:
		return fmt.Errorf("%w: noise floor must not be negative", ErrInvalidConfig)
	case c.AreaMin <= 0 || c.AreaMax <= 0:
		return fmt.Errorf("%w: area bounds must be positive", ErrInvalidConfig)
	case c.AreaMin > c.AreaMax:
		return fmt.Errorf("%w: area_min %.0f exceeds area_max %.0f", ErrInvalidConfig, c.AreaMin, c.AreaMax)
	case c.NoiseFloor > c.AreaMin:
		return fmt.Errorf("%w: noise_floor %.0f exceeds area_min %.0f", ErrInvalidConfig, c.NoiseFloor, c.AreaMin)
	case c.CircularityThreshold < 0:
		return fmt.Errorf("%w: circularity threshold must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Validate проверяет имя стратегии и её параметры
func (c SegmentationConfig) Validate() error {
	switch c.Strategy {
	case StrategyColorRange:
		names := [4]string{"red", "orange", "yellow", "white"}
		for i, r := range c.Colors.All() {
			if err := r.validate(names[i]); err != nil {
				return err
			}
		}
	case StrategyContrastAdaptive:
		if c.Shape.MinArea > c.Shape.MaxArea || c.Shape.MinCircularity > c.Shape.MaxCircularity {
			return fmt.Errorf("%w: shape filter min exceeds max", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown segmentation strategy %q", ErrInvalidConfig, c.Strategy)
	}
	return nil
}

// Validate проверяет обе части конфигурации
func (c InspectionConfig) Validate() error {
	if err := c.Segmentation.Validate(); err != nil {
		return err
	}
	return c.Classification.Validate()
}
