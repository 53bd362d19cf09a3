package calculator

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"BullionWatch/internal/model"
)

func barsFromCloses(closes ...float64) []model.Bar {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100,
		}
	}
	return bars
}

func series(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCalculateSMA(t *testing.T) {
	v, err := CalculateSMA([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(v, 4) {
		t.Errorf("expected 4, got %v", v)
	}
	if _, err := CalculateSMA([]float64{1, 2}, 3); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := CalculateSMA([]float64{1, 2}, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestCalculateRSI_Rising(t *testing.T) {
	rsi, err := CalculateRSI(barsFromCloses(series(30, 100, 1)...), 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rsi != 100 {
		t.Errorf("expected RSI 100 on rising closes, got %.2f", rsi)
	}
	if s := RSIStatus(rsi, 70, 30); s != RSIOverbought {
		t.Errorf("expected Overbought, got %s", s)
	}
}

func TestCalculateRSI_Falling(t *testing.T) {
	rsi, err := CalculateRSI(barsFromCloses(series(30, 200, -1)...), 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rsi > 1 {
		t.Errorf("expected RSI near 0 on falling closes, got %.2f", rsi)
	}
	if s := RSIStatus(rsi, 70, 30); s != RSIOversold {
		t.Errorf("expected Oversold, got %s", s)
	}
}

func TestCalculateRSI_ShortSeriesUnavailable(t *testing.T) {
	for _, n := range []int{0, 1, 13, 14} {
		_, err := CalculateRSI(barsFromCloses(series(n, 100, 1)...), 14)
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("n=%d: expected ErrInsufficientData, got %v", n, err)
		}
	}
}

func TestCalculateRSI_Mixed(t *testing.T) {
	closes := []float64{100, 102, 101, 103, 102, 104, 103, 105, 104, 106, 105, 107, 106, 108, 107, 109}
	rsi, err := CalculateRSI(barsFromCloses(closes...), 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rsi <= 50 || rsi >= 100 {
		t.Errorf("expected RSI in (50,100) for choppy uptrend, got %.2f", rsi)
	}
}

func TestRSIStatus_Boundaries(t *testing.T) {
	tests := []struct {
		rsi  float64
		want string
	}{
		{70, RSIOverbought},
		{69.99, RSINeutral},
		{30, RSIOversold},
		{30.01, RSINeutral},
		{50, RSINeutral},
	}
	for _, tt := range tests {
		if got := RSIStatus(tt.rsi, 70, 30); got != tt.want {
			t.Errorf("RSIStatus(%v) = %s, want %s", tt.rsi, got, tt.want)
		}
	}
}

func TestAlignment(t *testing.T) {
	tests := []struct {
		name               string
		price, short, long float64
		want               string
	}{
		{"bullish stack", 110, 105, 100, AlignBullish},
		{"bearish stack", 90, 95, 100, AlignBearish},
		{"price between", 102, 105, 100, AlignNeutral},
		{"short below long, price above", 110, 95, 100, AlignNeutral},
		{"all equal", 100, 100, 100, AlignNeutral},
	}
	for _, tt := range tests {
		if got := Alignment(tt.price, tt.short, tt.long); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestAlignment_TotalAndIdempotent(t *testing.T) {
	valid := map[string]bool{AlignBullish: true, AlignBearish: true, AlignNeutral: true}
	values := []float64{-1, 0, 1, 99.5, 100, 100.5, 1e6}
	for _, p := range values {
		for _, s := range values {
			for _, l := range values {
				first := Alignment(p, s, l)
				if !valid[first] {
					t.Fatalf("Alignment(%v,%v,%v) returned %q", p, s, l, first)
				}
				if again := Alignment(p, s, l); again != first {
					t.Fatalf("Alignment(%v,%v,%v) not idempotent: %s then %s", p, s, l, first, again)
				}
			}
		}
	}
}

func TestMovingAverages(t *testing.T) {
	mas := MovingAverages(barsFromCloses(series(10, 1, 1)...), []int{5, 50})
	if mas["ma5"] == nil || !approx(*mas["ma5"], 8) {
		t.Errorf("expected ma5=8, got %v", mas["ma5"])
	}
	v, ok := mas["ma50"]
	if !ok || v != nil {
		t.Errorf("expected ma50 present and nil, got %v (present=%v)", v, ok)
	}
}

func TestFindExtrema(t *testing.T) {
	highs := []float64{10, 11, 12, 15, 12, 11, 10, 11, 12}
	bars := make([]model.Bar, len(highs))
	for i, h := range highs {
		bars[i] = model.Bar{High: h, Low: h - 2, Close: h - 1}
	}
	hi, lo, err := FindExtrema(bars, 50, 0.001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hi) != 1 || hi[0] != 15 {
		t.Errorf("expected highs [15], got %v", hi)
	}
	if len(lo) != 1 || lo[0] != 8 {
		t.Errorf("expected lows [8], got %v", lo)
	}

	levels := RankLevels(11, hi, lo)
	s, r := levels.NearestSupport(), levels.NearestResistance()
	if s == nil || s.Price != 8 || s.Distance != 3 {
		t.Errorf("expected support 8 at distance 3, got %+v", s)
	}
	if r == nil || r.Price != 15 || r.Distance != 4 {
		t.Errorf("expected resistance 15 at distance 4, got %+v", r)
	}
}

func TestFindExtrema_TooShort(t *testing.T) {
	if _, _, err := FindExtrema(barsFromCloses(1, 2, 3), 50, 0.001); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestRankLevels_OrderedByDistance(t *testing.T) {
	levels := RankLevels(100, []float64{101, 110, 103, 98, 90, 99.5})
	wantR := []float64{101, 103, 110}
	wantS := []float64{99.5, 98, 90}
	for i, l := range levels.Resistance {
		if l.Price != wantR[i] {
			t.Errorf("resistance[%d] = %v, want %v", i, l.Price, wantR[i])
		}
	}
	for i, l := range levels.Support {
		if l.Price != wantS[i] {
			t.Errorf("support[%d] = %v, want %v", i, l.Price, wantS[i])
		}
	}
	if empty := RankLevels(100); empty.NearestSupport() != nil || empty.NearestResistance() != nil {
		t.Error("expected no nearest levels for empty candidates")
	}
}

func TestClusterLevels(t *testing.T) {
	got := clusterLevels([]float64{101, 100.05, 100}, 0.001)
	if len(got) != 2 || got[0] != 100 || got[1] != 101 {
		t.Errorf("expected [100 101], got %v", got)
	}
}

func TestCalculatePivots(t *testing.T) {
	bars := []model.Bar{{High: 110, Low: 90, Close: 100}, {High: 1, Low: 1, Close: 1}}
	p, err := CalculatePivots(bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := model.PivotPoints{Pivot: 100, R1: 110, R2: 120, R3: 130, S1: 90, S2: 80, S3: 70}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
	if _, err := CalculatePivots(bars[:1]); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestCalculateVolumeProfile(t *testing.T) {
	bars := barsFromCloses(series(20, 100, 0)...)
	bars[19].Volume = 300
	vp, err := CalculateVolumeProfile(bars, 20, 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(vp.Average, 110) {
		t.Errorf("expected average 110, got %v", vp.Average)
	}
	if !vp.HighVolume {
		t.Errorf("expected high volume, ratio %.2f", vp.Ratio)
	}
}

func TestHourlyChange(t *testing.T) {
	bars := barsFromCloses(2390, 2400, 2405)
	chg, err := HourlyChange(bars, model.Res1h, 2412)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chg != 0.5 {
		t.Errorf("expected +0.5%%, got %v", chg)
	}

	quarter := barsFromCloses(2400, 2401, 2402, 2403, 2404)
	chg, err = HourlyChange(quarter, model.Res15m, 2388)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chg != -0.5 {
		t.Errorf("expected -0.5%%, got %v", chg)
	}

	if _, err := HourlyChange(bars[:1], model.Res1h, 2412); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := HourlyChange(barsFromCloses(2400, 2410, 2420), model.Res4h, 2412); !errors.Is(err, ErrResolution) {
		t.Errorf("4h bars cannot give a one-hour change, got %v", err)
	}
}

func TestHourlyChange_NonFiniteIsError(t *testing.T) {
	bars := barsFromCloses(2390, math.NaN(), 2405)
	if _, err := HourlyChange(bars, model.Res1h, 2412); err == nil {
		t.Error("expected an error for a NaN close")
	}
	if _, err := PercentChange(2400, math.Inf(1)); err == nil {
		t.Error("expected an error for an infinite price")
	}
}

func TestAnalyze_CoarsePrimaryLeavesChangeUnavailable(t *testing.T) {
	tech, missing := Analyze(model.Res4h, barsFromCloses(series(60, 2300, 1)...), 0, DefaultParams())
	if tech.PriceChange1h != nil {
		t.Errorf("expected no hourly change from 4h bars, got %v", *tech.PriceChange1h)
	}
	if !slices.Contains(missing, "technical.price_change_1h") {
		t.Errorf("expected price_change_1h reported missing, got %v", missing)
	}
}

func TestAnalyze_Complete(t *testing.T) {
	p := DefaultParams()
	p.MAPeriods = []int{5, 10}
	bars := barsFromCloses(series(30, 100, 1)...)

	tech, missing := Analyze(model.Res1h, bars, 0, p)
	if len(missing) != 0 {
		t.Errorf("expected nothing missing, got %v", missing)
	}
	if tech.CurrentPrice == nil || *tech.CurrentPrice != 129 {
		t.Errorf("expected current price 129, got %v", tech.CurrentPrice)
	}
	if tech.RSI == nil || tech.RSIStatus != RSIOverbought {
		t.Errorf("expected overbought RSI, got %v %s", tech.RSI, tech.RSIStatus)
	}
	if tech.MAAlignment != AlignBullish {
		t.Errorf("expected Bullish alignment, got %s", tech.MAAlignment)
	}
	if tech.NearestSupport == nil || tech.NearestResistance == nil {
		t.Error("expected nearest support and resistance")
	}
	if tech.PivotPoints == nil || tech.Volume == nil {
		t.Error("expected pivots and volume profile")
	}
}

func TestAnalyze_ShortHistoryIsUnavailable(t *testing.T) {
	tech, missing := Analyze(model.Res1h, barsFromCloses(100, 101, 102), 0, DefaultParams())
	if tech.RSI != nil || tech.RSIStatus != model.Unavailable {
		t.Errorf("expected RSI unavailable, got %v %s", tech.RSI, tech.RSIStatus)
	}
	if tech.MAAlignment != model.Unavailable {
		t.Errorf("expected alignment unavailable, got %s", tech.MAAlignment)
	}
	if _, ok := tech.MovingAverages["ma200"]; !ok {
		t.Error("expected ma200 key present")
	}
	if len(missing) == 0 {
		t.Error("expected missing indicators reported")
	}
}

func TestAnalyze_NoData(t *testing.T) {
	tech, missing := Analyze(model.Res1h, nil, 0, DefaultParams())
	if tech.CurrentPrice != nil {
		t.Errorf("expected nil price, got %v", *tech.CurrentPrice)
	}
	if tech.Levels.Support == nil || tech.Levels.Resistance == nil {
		t.Error("expected empty, non-nil level slices")
	}
	if len(missing) != 1 || missing[0] != "technical" {
		t.Errorf("expected [technical], got %v", missing)
	}
}
