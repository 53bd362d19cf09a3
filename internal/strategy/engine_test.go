package strategy

import (
	"strings"
	"testing"
	"time"

	"BullionWatch/internal/calculator"
	"BullionWatch/internal/model"
)

var now = time.Date(2025, time.June, 3, 10, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func quietInputs() Inputs {
	return Inputs{
		Technical: model.Technical{
			CurrentPrice:      f(2400),
			PriceChange1h:     f(0.1),
			RSI:               f(50),
			RSIStatus:         calculator.RSINeutral,
			NearestSupport:    &model.Level{Price: 2380, Distance: 20},
			NearestResistance: &model.Level{Price: 2430, Distance: 30},
			Volume:            &model.VolumeProfile{Current: 1000, Average: 1000, Ratio: 1},
		},
		Correlations: model.Correlations{
			Yield:  &model.YieldSignal{SeriesSignal: model.SeriesSignal{ChangeBps: f(0.5)}},
			Dollar: &model.DollarSignal{SeriesSignal: model.SeriesSignal{PercentChange: 0.1}},
		},
		Events: []model.Event{{Title: "US CPI", Time: now.Add(3 * time.Hour)}},
		Now:    now,
	}
}

func TestEvaluate_QuietMarket(t *testing.T) {
	c := Evaluate(quietInputs(), DefaultThresholds())
	if c.PrimaryDriver != DriverTechnical {
		t.Errorf("expected Technical driver, got %s", c.PrimaryDriver)
	}
	if c.Momentum.Description != "Weak Bullish" {
		t.Errorf("expected Weak Bullish, got %q", c.Momentum.Description)
	}
	if c.Alerts == nil || len(c.Alerts) != 0 {
		t.Errorf("expected empty non-nil alerts, got %#v", c.Alerts)
	}
}

func TestPrimaryDriver_Order(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Inputs)
		want   string
	}{
		{"default", func(*Inputs) {}, DriverTechnical},
		{"news within the hour", func(in *Inputs) { in.Events[0].Time = now.Add(45 * time.Minute) }, DriverFundamental},
		{"news beats rsi", func(in *Inputs) {
			in.Events[0].Time = now.Add(10 * time.Minute)
			in.Technical.RSIStatus = calculator.RSIOverbought
		}, DriverFundamental},
		{"rsi extreme", func(in *Inputs) { in.Technical.RSIStatus = calculator.RSIOversold }, DriverTechnical},
		{"yield move", func(in *Inputs) { in.Correlations.Yield.ChangeBps = f(-6) }, DriverFundamental},
		{"dollar move", func(in *Inputs) { in.Correlations.Dollar.PercentChange = 0.6 }, DriverSentiment},
		{"yield beats dollar", func(in *Inputs) {
			in.Correlations.Yield.ChangeBps = f(7)
			in.Correlations.Dollar.PercentChange = 0.6
		}, DriverFundamental},
		{"no correlations", func(in *Inputs) { in.Correlations = model.Correlations{} }, DriverTechnical},
	}
	for _, tt := range tests {
		in := quietInputs()
		tt.mutate(&in)
		if got := primaryDriver(in); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

func TestMomentum_AllBoundaries(t *testing.T) {
	tests := []struct {
		change float64
		want   string
	}{
		{0.8, "Strong Bullish"},
		{0.5, "Moderate Bullish"},
		{0.3, "Moderate Bullish"},
		{0.2, "Weak Bullish"},
		{0, "Weak Neutral"},
		{-0.25, "Moderate Bearish"},
		{-0.51, "Strong Bearish"},
	}
	for _, tt := range tests {
		m := momentum(model.Technical{PriceChange1h: f(tt.change)})
		if m.Description != tt.want {
			t.Errorf("change %.2f: expected %q, got %q", tt.change, tt.want, m.Description)
		}
	}

	if m := momentum(model.Technical{}); m.Direction != model.Unavailable {
		t.Errorf("expected unavailable momentum without change, got %+v", m)
	}
}

func TestAlerts_AllConditions(t *testing.T) {
	in := quietInputs()
	in.Technical.NearestResistance = &model.Level{Price: 2403, Distance: 3}
	in.Technical.NearestSupport = &model.Level{Price: 2398, Distance: 2}
	in.Correlations.Yield.ChangeBps = f(-7.5)
	in.Correlations.Dollar.PercentChange = -1.2
	in.Events[0].Time = now.Add(20 * time.Minute)
	in.Technical.Volume = &model.VolumeProfile{Ratio: 2.1, HighVolume: true}

	got := alerts(in, DefaultThresholds())
	want := []string{
		"Approaching Resistance",
		"Approaching Support",
		"Large Yield Move: 7.5 bps",
		"Significant DXY Movement: 1.20%",
		"High-Impact News in 20 minutes: US CPI",
		"High Volume: 2.1x average",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d alerts, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !strings.HasPrefix(got[i], want[i]) {
			t.Errorf("alert %d: expected prefix %q, got %q", i, want[i], got[i])
		}
	}
}

func TestAlerts_ProximityThreshold(t *testing.T) {
	in := quietInputs()
	// 0.2% of 2400 is 4.8
	in.Technical.NearestResistance = &model.Level{Price: 2405, Distance: 5}
	in.Technical.NearestSupport = &model.Level{Price: 2395.3, Distance: 4.7}

	got := alerts(in, DefaultThresholds())
	if len(got) != 1 || !strings.HasPrefix(got[0], "Approaching Support") {
		t.Errorf("expected only the support alert, got %v", got)
	}
}
