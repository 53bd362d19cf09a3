package calculator

import (
	"fmt"

	"BullionWatch/internal/model"
)

// CalculateVolumeProfile compares the latest bar's volume with the lookback average.
func CalculateVolumeProfile(bars []model.Bar, lookback int, highThreshold float64) (model.VolumeProfile, error) {
	if lookback <= 0 || len(bars) < lookback {
		return model.VolumeProfile{}, fmt.Errorf("volume(%d) over %d bars: %w", lookback, len(bars), ErrInsufficientData)
	}
	var sum float64
	for _, b := range bars[len(bars)-lookback:] {
		sum += b.Volume
	}
	avg := sum / float64(lookback)
	cur := bars[len(bars)-1].Volume
	ratio := 1.0
	if avg > 0 {
		ratio = cur / avg
	}
	return model.VolumeProfile{
		Current:    cur,
		Average:    avg,
		Ratio:      ratio,
		HighVolume: ratio > highThreshold,
	}, nil
}
