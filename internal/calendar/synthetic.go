package calendar

import (
	"context"
	"sort"
	"time"

	"BullionWatch/internal/model"
)

type canonical struct {
	title, description string
	offset             time.Duration
}

// canonicalEvents are the placeholder releases used when no real calendar is reachable.
var canonicalEvents = []canonical{
	{"US Non-Farm Payrolls (NFP)", "Monthly employment report", 3*time.Hour + 30*time.Minute},
	{"US Consumer Price Index (CPI)", "Inflation print", 8*time.Hour + 15*time.Minute},
	{"FOMC Meeting Minutes", "Federal Reserve policy meeting minutes", 14 * time.Hour},
	{"US Retail Sales", "Consumer spending data", 20*time.Hour + 30*time.Minute},
}

// Synthetic builds the canonical events relative to req.Now. If none falls
// inside the horizon the first is moved to the middle of it.
func Synthetic(req Request) []model.Event {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	events := make([]model.Event, len(canonicalEvents))
	inHorizon := false
	for i, c := range canonicalEvents {
		events[i] = model.Event{
			Title:       c.title,
			Description: c.description,
			Time:        req.Now.Add(c.offset),
			Impact:      model.ImpactHigh,
			Currency:    currency,
			Source:      model.TierSynthetic,
		}
		if c.offset <= req.Horizon {
			inHorizon = true
		}
	}
	if !inHorizon {
		events[0].Time = req.Now.Add(req.Horizon / 2)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })
	return events
}

// SyntheticTier wraps Synthetic as the terminal tier. It cannot fail.
func SyntheticTier() Tier {
	return Tier{
		Name: model.TierSynthetic,
		Fetch: func(_ context.Context, req Request) ([]model.Event, error) {
			return Synthetic(req), nil
		},
	}
}
