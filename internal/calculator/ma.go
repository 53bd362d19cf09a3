package calculator

import (
	"errors"
	"fmt"

	"BullionWatch/internal/model"
)

// ErrInsufficientData is returned when the series is too short for the indicator.
var ErrInsufficientData = errors.New("insufficient data")

// MA alignment labels.
const (
	AlignBullish = "Bullish"
	AlignBearish = "Bearish"
	AlignNeutral = "Neutral"
)

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, fmt.Errorf("sma(%d) over %d prices: %w", period, len(prices), ErrInsufficientData)
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// MovingAverages computes an SMA per period keyed "ma<period>". Periods without
// enough history map to nil.
func MovingAverages(bars []model.Bar, periods []int) map[string]*float64 {
	closes := extractCloses(bars)
	out := make(map[string]*float64, len(periods))
	for _, p := range periods {
		key := maKey(p)
		if v, err := CalculateSMA(closes, p); err == nil {
			out[key] = &v
		} else {
			out[key] = nil
		}
	}
	return out
}

// Alignment classifies price against a short and a long moving average.
// Every input maps to exactly one label.
func Alignment(price, short, long float64) string {
	switch {
	case short > long && price > short && price > long:
		return AlignBullish
	case short < long && price < short && price < long:
		return AlignBearish
	default:
		return AlignNeutral
	}
}

func extractCloses(bars []model.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
