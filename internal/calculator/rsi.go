package calculator

import (
	"errors"
	"fmt"

	"BullionWatch/internal/model"
)

// RSI status labels.
const (
	RSIOverbought = "Overbought"
	RSIOversold   = "Oversold"
	RSINeutral    = "Neutral"
)

// CalculateRSI computes the Wilder-smoothed RSI over the given period.
// Requires at least period+1 bars; shorter input returns ErrInsufficientData.
func CalculateRSI(bars []model.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return 0, fmt.Errorf("rsi(%d) over %d bars: %w", period, len(bars), ErrInsufficientData)
	}

	closes := extractCloses(bars)

	// Initial average gain/loss over the first `period` changes
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}

// RSIStatus classifies an RSI value; thresholds are inclusive.
func RSIStatus(rsi, overbought, oversold float64) string {
	switch {
	case rsi >= overbought:
		return RSIOverbought
	case rsi <= oversold:
		return RSIOversold
	default:
		return RSINeutral
	}
}
