package calculator

import (
	"strconv"

	"BullionWatch/internal/model"
)

// Params carries indicator settings from configuration.
type Params struct {
	RSIPeriod           int
	Overbought          float64
	Oversold            float64
	MAPeriods           []int // short, long
	LevelLookback       int
	ClusterThreshold    float64
	VolumeLookback      int
	HighVolumeThreshold float64
	MinBars             int
}

// DefaultParams mirrors the configuration defaults.
func DefaultParams() Params {
	return Params{
		RSIPeriod:           14,
		Overbought:          70,
		Oversold:            30,
		MAPeriods:           []int{50, 200},
		LevelLookback:       50,
		ClusterThreshold:    0.001,
		VolumeLookback:      20,
		HighVolumeThreshold: 1.5,
		MinBars:             20,
	}
}

// Analyze computes every indicator for one timeframe. Each indicator fails on its
// own; failed ones are left nil or Unavailable and named in the returned list.
// price <= 0 means "use the last close".
func Analyze(res model.Resolution, bars []model.Bar, price float64, p Params) (model.Technical, []string) {
	t := model.Technical{
		Timeframe:      res,
		RSIStatus:      model.Unavailable,
		MAAlignment:    model.Unavailable,
		MovingAverages: make(map[string]*float64, len(p.MAPeriods)),
		Levels:         model.TechnicalLevels{Support: []model.Level{}, Resistance: []model.Level{}},
	}
	for _, period := range p.MAPeriods {
		t.MovingAverages[maKey(period)] = nil
	}

	if price <= 0 && len(bars) > 0 {
		price = bars[len(bars)-1].Close
	}
	if price <= 0 {
		return t, []string{"technical"}
	}
	t.CurrentPrice = &price

	var missing []string
	if chg, err := HourlyChange(bars, res, price); err == nil {
		t.PriceChange1h = &chg
	} else {
		missing = append(missing, "technical.price_change_1h")
	}

	if len(bars) < p.MinBars {
		return t, append(missing, "technical")
	}

	if rsi, err := CalculateRSI(bars, p.RSIPeriod); err == nil {
		t.RSI = &rsi
		t.RSIStatus = RSIStatus(rsi, p.Overbought, p.Oversold)
	} else {
		missing = append(missing, "technical.rsi")
	}

	t.MovingAverages = MovingAverages(bars, p.MAPeriods)
	if len(p.MAPeriods) == 2 {
		short, long := t.MovingAverages[maKey(p.MAPeriods[0])], t.MovingAverages[maKey(p.MAPeriods[1])]
		if short != nil && long != nil {
			t.MAAlignment = Alignment(price, *short, *long)
		} else {
			missing = append(missing, "technical.ma_alignment")
		}
	}

	if levels, err := SupportResistance(bars, price, p.LevelLookback, p.ClusterThreshold); err == nil {
		t.Levels = levels
		t.NearestSupport = levels.NearestSupport()
		t.NearestResistance = levels.NearestResistance()
	} else {
		missing = append(missing, "technical.support_resistance")
	}

	if pv, err := CalculatePivots(bars); err == nil {
		t.PivotPoints = &pv
	} else {
		missing = append(missing, "technical.pivot_points")
	}

	if vp, err := CalculateVolumeProfile(bars, p.VolumeLookback, p.HighVolumeThreshold); err == nil {
		t.Volume = &vp
	} else {
		missing = append(missing, "technical.volume")
	}
	return t, missing
}

func maKey(period int) string {
	return "ma" + strconv.Itoa(period)
}
