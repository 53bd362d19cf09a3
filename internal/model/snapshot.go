package model

import "time"

// Unavailable is the display marker for an indicator that could not be computed.
const Unavailable = "N/A"

// Snapshot is one immutable, fully composed result of a pipeline run.
// Every field is always serialized; missing data is null or Unavailable.
type Snapshot struct {
	ID                 string         `json:"id"`
	Timestamp          time.Time      `json:"timestamp"`
	Symbol             string         `json:"symbol"`
	Session            string         `json:"session"`
	NextSessionOverlap SessionOverlap `json:"next_session_overlap"`
	Instrument         Instrument     `json:"instrument"`
	PrimaryDriver      string         `json:"primary_driver"`
	Momentum           Momentum       `json:"momentum"`
	Technical          Technical      `json:"technical"`
	Correlations       Correlations   `json:"correlations"`
	News               []Event        `json:"news"`
	NextCatalyst       *Catalyst      `json:"next_catalyst"`
	Alerts             []string       `json:"alerts"`
	Unavailable        []string       `json:"unavailable"`
}

// Instrument is the price block for the primary symbol.
type Instrument struct {
	Price     *float64   `json:"price"`
	Change1h  *float64   `json:"change_1h"`
	PrevClose *float64   `json:"previous_close"`
	FetchedAt *time.Time `json:"fetched_at"`
}

// SessionOverlap describes the next London/New York overlap window.
type SessionOverlap struct {
	Session      string `json:"session"`
	MinutesUntil int    `json:"minutes_until"`
	Active       bool   `json:"active"`
}

// Momentum summarises the short-term move.
type Momentum struct {
	Strength    string `json:"strength"`
	Direction   string `json:"direction"`
	Description string `json:"description"`
}

// Catalyst is the next scheduled event as shown on the dashboard.
type Catalyst struct {
	Event        string     `json:"event"`
	Time         time.Time  `json:"time"`
	Clock        string     `json:"clock"`
	MinutesUntil int        `json:"minutes_until"`
	Impact       Impact     `json:"impact"`
	Source       SourceTier `json:"source"`
}

// Level is a support or resistance candidate with its absolute distance from price.
type Level struct {
	Price    float64 `json:"price"`
	Distance float64 `json:"distance"`
}

// TechnicalLevels holds candidates ordered by distance ascending.
type TechnicalLevels struct {
	Support    []Level `json:"support"`
	Resistance []Level `json:"resistance"`
}

// NearestSupport returns the closest support, if any.
func (l TechnicalLevels) NearestSupport() *Level {
	if len(l.Support) == 0 {
		return nil
	}
	s := l.Support[0]
	return &s
}

// NearestResistance returns the closest resistance, if any.
func (l TechnicalLevels) NearestResistance() *Level {
	if len(l.Resistance) == 0 {
		return nil
	}
	r := l.Resistance[0]
	return &r
}

// PivotPoints are classic floor pivots from the previous bar.
type PivotPoints struct {
	Pivot float64 `json:"pivot"`
	R1    float64 `json:"r1"`
	R2    float64 `json:"r2"`
	R3    float64 `json:"r3"`
	S1    float64 `json:"s1"`
	S2    float64 `json:"s2"`
	S3    float64 `json:"s3"`
}

// VolumeProfile compares the latest bar's volume with its lookback average.
type VolumeProfile struct {
	Current    float64 `json:"current_volume"`
	Average    float64 `json:"average_volume"`
	Ratio      float64 `json:"volume_ratio"`
	HighVolume bool    `json:"is_high_volume"`
}

// Technical holds all computed indicators for one timeframe.
type Technical struct {
	Timeframe         Resolution          `json:"timeframe"`
	CurrentPrice      *float64            `json:"current_price"`
	PriceChange1h     *float64            `json:"price_change_1h"`
	RSI               *float64            `json:"rsi"`
	RSIStatus         string              `json:"rsi_status"`
	MovingAverages    map[string]*float64 `json:"moving_averages"`
	MAAlignment       string              `json:"ma_alignment"`
	Levels            TechnicalLevels     `json:"support_resistance"`
	NearestSupport    *Level              `json:"nearest_support"`
	NearestResistance *Level              `json:"nearest_resistance"`
	PivotPoints       *PivotPoints        `json:"pivot_points"`
	Volume            *VolumeProfile      `json:"volume"`
}

// Direction is the sign of a delta after the flat threshold is applied.
type Direction string

const (
	DirUp   Direction = "up"
	DirDown Direction = "down"
	DirFlat Direction = "flat"
)

// SeriesSignal is the common per-series correlation output.
type SeriesSignal struct {
	Symbol        string    `json:"symbol"`
	Source        string    `json:"source"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percent_change"`
	ChangeBps     *float64  `json:"change_bps"`
	Direction     Direction `json:"direction"`
}

// YieldSignal is the 10-year yield with its pressure on the instrument.
type YieldSignal struct {
	SeriesSignal
	Pressure string `json:"pressure"`
}

// YieldCurve is the 10Y minus 2Y spread.
type YieldCurve struct {
	SpreadBps float64 `json:"spread_bps"`
	Status    string  `json:"status"`
	Regime    string  `json:"regime"`
}

// VolatilitySignal is the volatility index reading.
type VolatilitySignal struct {
	SeriesSignal
	FearLevel   string `json:"fear_level"`
	HavenDemand string `json:"haven_demand"`
}

// DollarSignal is the USD strength proxy.
type DollarSignal struct {
	SeriesSignal
	Pressure string `json:"pressure"`
}

// RiskSignal is the risk-sentiment proxy.
type RiskSignal struct {
	SeriesSignal
	HavenDemand string `json:"haven_demand"`
}

// Correlations holds every cross-asset signal. Nil entries serialize as null.
type Correlations struct {
	Yield      *YieldSignal      `json:"yield"`
	Yield2Y    *SeriesSignal     `json:"yield_2y"`
	Yield30Y   *SeriesSignal     `json:"yield_30y"`
	YieldCurve *YieldCurve       `json:"yield_curve"`
	VIX        *VolatilitySignal `json:"vix"`
	Dollar     *DollarSignal     `json:"dxy"`
	Risk       *RiskSignal       `json:"risk"`
	Crypto     *SeriesSignal     `json:"btc"`
}
