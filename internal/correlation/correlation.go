package correlation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"BullionWatch/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Input is what one pipeline run collected for the cross-asset view.
type Input struct {
	Macro  map[string]model.MacroSeries // by logical name
	Quotes map[string]model.Quote       // by symbol
}

// Signal computes delta, percent change and, for rate series, the basis-point
// change of a series, then classifies its direction.
func Signal(symbol string, s model.MacroSeries) model.SeriesSignal {
	sig := model.SeriesSignal{
		Symbol:    symbol,
		Source:    s.Source,
		Price:     s.Latest.InexactFloat64(),
		Direction: model.DirFlat,
	}
	if !s.HasPrior {
		return sig
	}
	delta := s.Latest.Sub(s.Prior)
	sig.Change = delta.Round(6).InexactFloat64()
	if !s.Prior.IsZero() {
		sig.PercentChange = delta.Div(s.Prior).Mul(hundred).Round(4).InexactFloat64()
	}
	if s.Unit == model.UnitPercent {
		bps := delta.Mul(hundred).Round(2).InexactFloat64()
		sig.ChangeBps = &bps
		sig.Direction = DirectionOf(bps, FlatBps)
		return sig
	}
	sig.Direction = DirectionOf(sig.PercentChange, FlatPercent)
	return sig
}

// DirectionOf classifies v, treating |v| < eps as flat.
func DirectionOf(v, eps float64) model.Direction {
	switch {
	case v >= eps:
		return model.DirUp
	case v <= -eps:
		return model.DirDown
	default:
		return model.DirFlat
	}
}

// FearLevel maps a volatility index level to fear and haven-demand labels.
func FearLevel(level float64) (fear, haven string) {
	for _, t := range fearTiers {
		if level >= t.Min {
			return t.Fear, t.Haven
		}
	}
	return lowFear, lowHaven
}

// CurveStatus classifies a 10Y-2Y spread in basis points.
func CurveStatus(spreadBps float64) (status, regime string) {
	switch {
	case spreadBps > 0:
		status = CurveNormal
	case spreadBps < curveInvertedBps:
		status = CurveInverted
	default:
		status = CurveFlat
	}
	return status, curveRegime[status]
}

func strength(pct float64) string {
	if abs(pct) > StrengthPercent {
		return "Strong"
	}
	return "Weak"
}

// RiskHaven maps the risk proxy's percent change to haven demand.
func RiskHaven(pct float64) string {
	switch {
	case pct > StrengthPercent:
		return "Low"
	case pct < -StrengthPercent:
		return "High"
	default:
		return "Moderate"
	}
}

// Analyze builds every correlation signal available from in. Signals whose
// inputs are missing stay nil and are named in the returned list.
func Analyze(in Input) (model.Correlations, []string) {
	var c model.Correlations
	var missing []string

	tenY, hasTenY := in.Macro[US10Y]
	if hasTenY {
		sig := Signal("US10Y", tenY)
		c.Yield = &model.YieldSignal{SeriesSignal: sig, Pressure: yieldPressure[sig.Direction]}
	} else {
		missing = append(missing, "correlations.yield")
	}

	twoY, hasTwoY := in.Macro[US2Y]
	if hasTwoY {
		sig := Signal("US2Y", twoY)
		c.Yield2Y = &sig
	} else {
		missing = append(missing, "correlations.yield_2y")
	}

	if s, ok := in.Macro[US30Y]; ok {
		sig := Signal("US30Y", s)
		c.Yield30Y = &sig
	} else {
		missing = append(missing, "correlations.yield_30y")
	}

	if hasTenY && hasTwoY {
		spread := tenY.Latest.Sub(twoY.Latest).Mul(hundred).Round(2).InexactFloat64()
		status, regime := CurveStatus(spread)
		c.YieldCurve = &model.YieldCurve{SpreadBps: spread, Status: status, Regime: regime}
	} else {
		missing = append(missing, "correlations.yield_curve")
	}

	if s, ok := lookup(in, VIX); ok {
		sig := Signal("VIX", s)
		fear, haven := FearLevel(sig.Price)
		c.VIX = &model.VolatilitySignal{SeriesSignal: sig, FearLevel: fear, HavenDemand: haven}
	} else {
		missing = append(missing, "correlations.vix")
	}

	if d := dollar(in); d != nil {
		c.Dollar = d
	} else {
		missing = append(missing, "correlations.dxy")
	}

	if q, ok := in.Quotes[riskProxy]; ok && q.Price > 0 {
		sig := Signal(riskProxy, model.SeriesFromQuote(riskProxy, q))
		c.Risk = &model.RiskSignal{SeriesSignal: sig, HavenDemand: RiskHaven(sig.PercentChange)}
	} else {
		missing = append(missing, "correlations.risk")
	}

	if q, ok := in.Quotes[BTCUSD]; ok && q.Price > 0 {
		sig := Signal(BTCUSD, model.SeriesFromQuote(BTCUSD, q))
		c.Crypto = &sig
	} else {
		missing = append(missing, "correlations.btc")
	}
	return c, missing
}

// lookup finds a series by macro name, falling back to a quote of the same name.
func lookup(in Input, name string) (model.MacroSeries, bool) {
	if s, ok := in.Macro[name]; ok {
		return s, true
	}
	if q, ok := in.Quotes[name]; ok && q.Price > 0 {
		return model.SeriesFromQuote(name, q), true
	}
	return model.MacroSeries{}, false
}

func dollar(in Input) *model.DollarSignal {
	for _, src := range dollarSources {
		var s model.MacroSeries
		var ok bool
		if src.macro {
			s, ok = in.Macro[src.name]
		} else if q, found := in.Quotes[src.name]; found && q.Price > 0 {
			s, ok = model.SeriesFromQuote(src.name, q), true
		}
		if !ok {
			continue
		}
		sig := Signal(src.symbol, s)
		pressure := fmt.Sprintf("%s Inverse", strength(sig.PercentChange))
		if src.inverse && sig.PercentChange > 0 {
			pressure = fmt.Sprintf("%s Direct", strength(sig.PercentChange))
		}
		return &model.DollarSignal{SeriesSignal: sig, Pressure: pressure}
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
