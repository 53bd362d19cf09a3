package correlation

import "BullionWatch/internal/model"

// Logical input names. Macro names match the configured series map; quote
// names are provider symbols.
const (
	US10Y  = "US10Y"
	US2Y   = "US2Y"
	US30Y  = "US30Y"
	VIX    = "VIX"
	DXY    = "DXY"
	USDEUR = "USDEUR"

	EURUSD = "EUR/USD"
	USDJPY = "USD/JPY"
	GBPUSD = "GBP/USD"
	BTCUSD = "BTC/USD"
)

// Moves smaller than these are reported as flat.
const (
	FlatBps     = 0.1  // rate series, in basis points
	FlatPercent = 0.01 // all other series, in percent
)

// StrengthPercent separates Strong from Weak dollar pressure and sets the
// risk proxy's haven-demand band.
const StrengthPercent = 0.5

// yieldPressure maps the 10Y direction to pressure on gold.
var yieldPressure = map[model.Direction]string{
	model.DirUp:   "Down",
	model.DirDown: "Up",
	model.DirFlat: "Neutral",
}

// fearTiers are checked top to bottom against the volatility index level.
var fearTiers = []struct {
	Min   float64
	Fear  string
	Haven string
}{
	{30, "Extreme Fear", "Very High"},
	{20, "High Fear", "High"},
	{15, "Moderate", "Moderate"},
}

const (
	lowFear  = "Low Fear"
	lowHaven = "Low"
)

// Curve status by 10Y-2Y spread in bps: above zero Normal, below
// curveInvertedBps Inverted, otherwise Flat.
const curveInvertedBps = -10

const (
	CurveNormal   = "Normal"
	CurveFlat     = "Flat"
	CurveInverted = "Inverted"
)

var curveRegime = map[string]string{
	CurveNormal:   "Risk-On",
	CurveFlat:     "Neutral",
	CurveInverted: "Risk-Off",
}

// dollarSource is one candidate for the USD strength proxy. inverse marks
// quotes that rise when the dollar weakens.
type dollarSource struct {
	name    string
	symbol  string
	macro   bool
	inverse bool
}

// dollarSources in preference order; the first one available wins.
var dollarSources = []dollarSource{
	{name: DXY, symbol: "DXY", macro: true},
	{name: USDEUR, symbol: "USD/EUR", macro: true},
	{name: EURUSD, symbol: EURUSD, inverse: true},
	{name: USDJPY, symbol: USDJPY},
}

// riskProxy is the quote used for risk sentiment.
const riskProxy = GBPUSD
