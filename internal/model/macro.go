package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unit describes how a macro series value is quoted.
type Unit string

const (
	UnitPercent Unit = "percent" // rates; deltas are also reported in basis points
	UnitIndex   Unit = "index"
	UnitFX      Unit = "fx"
	UnitPrice   Unit = "price"
)

// MacroSeries is the latest and prior reading of an auxiliary series.
type MacroSeries struct {
	ID       string          `json:"id"`
	Latest   decimal.Decimal `json:"latest"`
	Prior    decimal.Decimal `json:"prior"`
	HasPrior bool            `json:"has_prior"`
	Unit     Unit            `json:"unit"`
	Date     string          `json:"date"`
	Source   string          `json:"source"`
}

// Observation is one dated point of a historical series.
type Observation struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// SeriesFromQuote adapts a cross-asset quote to the macro series shape.
func SeriesFromQuote(id string, q Quote) MacroSeries {
	s := MacroSeries{
		ID:     id,
		Latest: decimal.NewFromFloat(q.Price),
		Unit:   UnitPrice,
		Date:   q.FetchedAt.UTC().Format(time.DateOnly),
		Source: "quote",
	}
	if q.PrevClose != 0 {
		s.Prior = decimal.NewFromFloat(q.PrevClose)
		s.HasPrior = true
	}
	return s
}
