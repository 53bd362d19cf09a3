package calculator

import (
	"fmt"
	"math"
	"sort"

	"BullionWatch/internal/model"
)

const maxLevelsPerSide = 5

// FindExtrema returns swing highs and lows over the last lookback bars. A swing
// point must exceed the two bars on each side; the window high and low are
// always included. Nearby levels are merged when within threshold (relative).
func FindExtrema(bars []model.Bar, lookback int, threshold float64) (highs, lows []float64, err error) {
	if len(bars) < 5 {
		return nil, nil, fmt.Errorf("extrema over %d bars: %w", len(bars), ErrInsufficientData)
	}
	if lookback <= 0 || lookback > len(bars) {
		lookback = len(bars)
	}
	window := bars[len(bars)-lookback:]

	maxHigh, minLow := math.Inf(-1), math.Inf(1)
	for i, b := range window {
		if b.High > maxHigh {
			maxHigh = b.High
		}
		if b.Low < minLow {
			minLow = b.Low
		}
		if i < 2 || i > len(window)-3 {
			continue
		}
		if b.High > window[i-1].High && b.High > window[i-2].High &&
			b.High > window[i+1].High && b.High > window[i+2].High {
			highs = append(highs, b.High)
		}
		if b.Low < window[i-1].Low && b.Low < window[i-2].Low &&
			b.Low < window[i+1].Low && b.Low < window[i+2].Low {
			lows = append(lows, b.Low)
		}
	}
	highs = clusterLevels(append(highs, maxHigh), threshold)
	lows = clusterLevels(append(lows, minLow), threshold)
	return highs, lows, nil
}

func clusterLevels(levels []float64, threshold float64) []float64 {
	if len(levels) == 0 {
		return nil
	}
	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)
	out := []float64{sorted[0]}
	for _, l := range sorted[1:] {
		last := out[len(out)-1]
		if last == 0 || math.Abs(l-last)/last > threshold {
			out = append(out, l)
		}
	}
	return out
}

// RankLevels splits candidate levels around price and orders each side by
// absolute distance ascending. Levels equal to price are ignored.
func RankLevels(price float64, candidates ...[]float64) model.TechnicalLevels {
	seen := make(map[float64]bool)
	var out model.TechnicalLevels
	for _, set := range candidates {
		for _, lvl := range set {
			if seen[lvl] {
				continue
			}
			seen[lvl] = true
			l := model.Level{Price: lvl, Distance: math.Abs(price - lvl)}
			switch {
			case lvl < price:
				out.Support = append(out.Support, l)
			case lvl > price:
				out.Resistance = append(out.Resistance, l)
			}
		}
	}
	byDistance := func(ls []model.Level) []model.Level {
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].Distance < ls[j].Distance })
		if len(ls) > maxLevelsPerSide {
			ls = ls[:maxLevelsPerSide]
		}
		if ls == nil {
			ls = []model.Level{}
		}
		return ls
	}
	out.Support = byDistance(out.Support)
	out.Resistance = byDistance(out.Resistance)
	return out
}

// SupportResistance finds extrema and ranks them against price.
func SupportResistance(bars []model.Bar, price float64, lookback int, threshold float64) (model.TechnicalLevels, error) {
	highs, lows, err := FindExtrema(bars, lookback, threshold)
	if err != nil {
		return model.TechnicalLevels{Support: []model.Level{}, Resistance: []model.Level{}}, err
	}
	return RankLevels(price, highs, lows), nil
}
