package strategy

import (
	"time"

	"BullionWatch/internal/model"
)

// Primary driver labels.
const (
	DriverFundamental = "Fundamental"
	DriverTechnical   = "Technical"
	DriverSentiment   = "Sentiment"
)

// Thresholds are the configurable alert triggers.
type Thresholds struct {
	AlertProximityPercent float64
	YieldAlertBps         float64
}

// DefaultThresholds mirrors the configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{AlertProximityPercent: 0.2, YieldAlertBps: 5}
}

// Inputs is everything the market-conditions read looks at.
type Inputs struct {
	Technical    model.Technical
	Correlations model.Correlations
	Events       []model.Event // ascending, first is the next catalyst
	Now          time.Time
}

// Conditions is the combined read of one snapshot.
type Conditions struct {
	PrimaryDriver string
	Momentum      model.Momentum
	Alerts        []string
}

// momentumTiers maps the absolute 1h change in percent to a strength label.
var momentumTiers = []struct {
	Above    float64
	Strength string
}{
	{0.5, "Strong"},
	{0.2, "Moderate"},
}

// DefaultStrength is used below the lowest tier.
const DefaultStrength = "Weak"

func strengthOf(absChange float64) string {
	for _, t := range momentumTiers {
		if absChange > t.Above {
			return t.Strength
		}
	}
	return DefaultStrength
}

// Evaluate derives the primary driver, momentum and alert conditions.
func Evaluate(in Inputs, th Thresholds) Conditions {
	return Conditions{
		PrimaryDriver: primaryDriver(in),
		Momentum:      momentum(in.Technical),
		Alerts:        alerts(in, th),
	}
}
