package calculator

import (
	"fmt"

	"BullionWatch/internal/model"
)

// CalculatePivots returns classic floor pivots derived from the previous bar.
func CalculatePivots(bars []model.Bar) (model.PivotPoints, error) {
	if len(bars) < 2 {
		return model.PivotPoints{}, fmt.Errorf("pivots over %d bars: %w", len(bars), ErrInsufficientData)
	}
	prev := bars[len(bars)-2]
	h, l, c := prev.High, prev.Low, prev.Close
	p := (h + l + c) / 3
	return model.PivotPoints{
		Pivot: p,
		R1:    2*p - l,
		R2:    p + (h - l),
		R3:    h + 2*(p-l),
		S1:    2*p - h,
		S2:    p - (h - l),
		S3:    l - 2*(h-p),
	}, nil
}
