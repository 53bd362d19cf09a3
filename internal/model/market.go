package model

import "time"

// Resolution is a bar interval as understood by the quote provider.
type Resolution string

const (
	Res15m Resolution = "15min"
	Res1h  Resolution = "1h"
	Res4h  Resolution = "4h"
)

// Bar represents a single candlestick bar.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Quote is one fetch of the primary instrument. A new fetch replaces the old one wholesale.
type Quote struct {
	Symbol        string               `json:"symbol"`
	Price         float64              `json:"price"`
	PrevClose     float64              `json:"previous_close"`
	PercentChange float64              `json:"percent_change"`
	Bars          map[Resolution][]Bar `json:"-"`
	FetchedAt     time.Time            `json:"fetched_at"`
}

// BarsFor returns the bar series for a resolution, or nil.
func (q *Quote) BarsFor(res Resolution) []Bar {
	if q == nil || q.Bars == nil {
		return nil
	}
	return q.Bars[res]
}

// LastClose returns the close of the most recent bar across preferred resolutions.
func (q *Quote) LastClose(order ...Resolution) (float64, bool) {
	for _, res := range order {
		bars := q.BarsFor(res)
		if len(bars) > 0 {
			return bars[len(bars)-1].Close, true
		}
	}
	return 0, false
}
