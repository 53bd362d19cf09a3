package calculator

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"BullionWatch/internal/model"
)

// PercentChange returns (to - from) / from * 100, rounded to 4 places.
func PercentChange(from, to float64) (float64, error) {
	if !finite(from) || !finite(to) {
		return 0, fmt.Errorf("percent change from %v to %v: non-finite value", from, to)
	}
	if from == 0 {
		return 0, errors.New("percent change from zero")
	}
	f := decimal.NewFromFloat(from)
	t := decimal.NewFromFloat(to)
	return t.Sub(f).Div(f).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64(), nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// ErrResolution means a series is too coarse to measure the requested span.
var ErrResolution = errors.New("resolution coarser than one hour")

// BarsPerHour is how many bars of a resolution span one hour.
func BarsPerHour(res model.Resolution) (int, error) {
	switch res {
	case model.Res15m:
		return 4, nil
	case model.Res1h:
		return 1, nil
	default:
		return 0, fmt.Errorf("%s: %w", res, ErrResolution)
	}
}

// HourlyChange measures price against the close one hour back in the series.
// The last bar is taken as the current, still-forming bar.
func HourlyChange(bars []model.Bar, res model.Resolution, price float64) (float64, error) {
	k, err := BarsPerHour(res)
	if err != nil {
		return 0, err
	}
	if len(bars) < k+1 {
		return 0, fmt.Errorf("hourly change over %d bars: %w", len(bars), ErrInsufficientData)
	}
	return PercentChange(bars[len(bars)-1-k].Close, price)
}
