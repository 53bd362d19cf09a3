package strategy

import (
	"fmt"
	"math"

	"BullionWatch/internal/calculator"
	"BullionWatch/internal/model"
)

const (
	// driverNewsMinutes makes an imminent event the primary driver.
	driverNewsMinutes = 60
	// driverYieldBps makes a 10Y move the primary driver.
	driverYieldBps = 5
	// driverDollarPercent makes a dollar move the primary driver.
	driverDollarPercent = 0.5

	alertNewsMinutes   = 30
	alertDollarPercent = 1.0
)

func minutesUntil(in Inputs) (int, bool) {
	if len(in.Events) == 0 {
		return 0, false
	}
	return int(in.Events[0].Time.Sub(in.Now).Minutes()), true
}

// primaryDriver checks in order: imminent news, RSI extreme, yield move,
// dollar move. Technical is the default.
func primaryDriver(in Inputs) string {
	if m, ok := minutesUntil(in); ok && m < driverNewsMinutes {
		return DriverFundamental
	}
	switch in.Technical.RSIStatus {
	case calculator.RSIOverbought, calculator.RSIOversold:
		return DriverTechnical
	}
	if y := in.Correlations.Yield; y != nil && y.ChangeBps != nil && math.Abs(*y.ChangeBps) > driverYieldBps {
		return DriverFundamental
	}
	if d := in.Correlations.Dollar; d != nil && math.Abs(d.PercentChange) > driverDollarPercent {
		return DriverSentiment
	}
	return DriverTechnical
}

// momentum reads direction from the sign of the 1h change and strength from
// its size.
func momentum(t model.Technical) model.Momentum {
	if t.PriceChange1h == nil {
		return model.Momentum{Strength: model.Unavailable, Direction: model.Unavailable, Description: model.Unavailable}
	}
	change := *t.PriceChange1h

	var direction string
	switch {
	case change > 0:
		direction = calculator.AlignBullish
	case change < 0:
		direction = calculator.AlignBearish
	default:
		direction = calculator.AlignNeutral
	}
	strength := strengthOf(math.Abs(change))
	return model.Momentum{
		Strength:    strength,
		Direction:   direction,
		Description: strength + " " + direction,
	}
}

// alerts lists triggered conditions in a fixed order. No alert is an empty list.
func alerts(in Inputs, th Thresholds) []string {
	out := []string{}
	t := in.Technical

	if t.CurrentPrice != nil && *t.CurrentPrice > 0 {
		price := *t.CurrentPrice
		if r := t.NearestResistance; r != nil && r.Distance/price*100 < th.AlertProximityPercent {
			out = append(out, fmt.Sprintf("Approaching Resistance: $%.2f (%.2f away)", r.Price, r.Distance))
		}
		if s := t.NearestSupport; s != nil && s.Distance/price*100 < th.AlertProximityPercent {
			out = append(out, fmt.Sprintf("Approaching Support: $%.2f (%.2f away)", s.Price, s.Distance))
		}
	}

	if y := in.Correlations.Yield; y != nil && y.ChangeBps != nil {
		if bps := math.Abs(*y.ChangeBps); bps > th.YieldAlertBps {
			out = append(out, fmt.Sprintf("Large Yield Move: %.1f bps", bps))
		}
	}

	if d := in.Correlations.Dollar; d != nil {
		if pct := math.Abs(d.PercentChange); pct > alertDollarPercent {
			out = append(out, fmt.Sprintf("Significant DXY Movement: %.2f%%", pct))
		}
	}

	if m, ok := minutesUntil(in); ok && m < alertNewsMinutes {
		out = append(out, fmt.Sprintf("High-Impact News in %d minutes: %s", m, in.Events[0].Title))
	}

	if v := t.Volume; v != nil && v.HighVolume {
		out = append(out, fmt.Sprintf("High Volume: %.1fx average", v.Ratio))
	}
	return out
}
