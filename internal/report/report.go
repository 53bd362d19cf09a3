package report

import (
	"fmt"
	"strings"

	"BullionWatch/internal/model"
)

var arrows = map[model.Direction]string{
	model.DirUp:   "▲",
	model.DirDown: "▼",
	model.DirFlat: "→",
}

func price(p *float64, format string) string {
	if p == nil {
		return model.Unavailable
	}
	return fmt.Sprintf(format, *p)
}

// FormatSnapshot renders a snapshot as a plain-text market brief.
func FormatSnapshot(s *model.Snapshot) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s]\n", s.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")))
	b.WriteString(fmt.Sprintf("%s: %s | Change: %s (1hr) | Session: %s\n\n",
		strings.ReplaceAll(s.Symbol, "/", ""),
		price(s.Instrument.Price, "$%.2f"),
		price(s.Instrument.Change1h, "%+.2f%%"),
		s.Session))

	b.WriteString(fmt.Sprintf("PRIMARY DRIVER: %s\n", s.PrimaryDriver))
	b.WriteString(fmt.Sprintf("MOMENTUM: %s\n\n", s.Momentum.Description))

	b.WriteString("KEY MONITORS:\n")
	c := s.Correlations
	if y := c.Yield; y != nil && y.ChangeBps != nil {
		b.WriteString(fmt.Sprintf("YIELD WATCH: 10Y @ %.2f%% (%s %.1fbps) → Gold Pressure: %s\n",
			y.Price, arrows[y.Direction], abs(*y.ChangeBps), y.Pressure))
	}
	if cv := c.YieldCurve; cv != nil {
		b.WriteString(fmt.Sprintf("YIELD CURVE: 10Y-2Y %+.1fbps [%s] → %s\n", cv.SpreadBps, cv.Status, cv.Regime))
	}
	if d := c.Dollar; d != nil {
		b.WriteString(fmt.Sprintf("USD WATCH: %s @ %.4g (%s %.2f%%) → Pressure: %s\n",
			d.Symbol, d.Price, arrows[d.Direction], abs(d.PercentChange), d.Pressure))
	}
	if v := c.VIX; v != nil {
		b.WriteString(fmt.Sprintf("FEAR GAUGE: VIX @ %.2f → %s, Haven Demand: %s\n", v.Price, v.FearLevel, v.HavenDemand))
	}
	if r := c.Risk; r != nil {
		b.WriteString(fmt.Sprintf("RISK GAUGE: %s %s %.2f%% → Haven Demand: %s\n",
			r.Symbol, arrows[r.Direction], abs(r.PercentChange), r.HavenDemand))
	}
	b.WriteString("\n")

	t := s.Technical
	b.WriteString(fmt.Sprintf("TECHNICALS (%s):\n", t.Timeframe))
	if sp := t.NearestSupport; sp != nil {
		b.WriteString(fmt.Sprintf("• Nearest Support: $%.2f (%.2f below)\n", sp.Price, sp.Distance))
	}
	if r := t.NearestResistance; r != nil {
		b.WriteString(fmt.Sprintf("• Nearest Resistance: $%.2f (%.2f above)\n", r.Price, r.Distance))
	}
	b.WriteString(fmt.Sprintf("• MA Alignment: %s\n", t.MAAlignment))
	if t.RSI != nil {
		b.WriteString(fmt.Sprintf("• RSI: %.1f [%s]\n", *t.RSI, t.RSIStatus))
	} else {
		b.WriteString(fmt.Sprintf("• RSI: %s\n", model.Unavailable))
	}
	b.WriteString("\n")

	if cat := s.NextCatalyst; cat != nil {
		b.WriteString(fmt.Sprintf("NEXT CATALYST: %s at %s in %d minutes | Impact: %s\n",
			cat.Event, cat.Clock, cat.MinutesUntil, cat.Impact))
	} else {
		b.WriteString("NEXT CATALYST: None scheduled\n")
	}
	b.WriteString("\n")

	alerts := "None"
	if len(s.Alerts) > 0 {
		alerts = strings.Join(s.Alerts, ", ")
	}
	b.WriteString(fmt.Sprintf("ALERT CONDITIONS: %s", alerts))
	if len(s.Unavailable) > 0 {
		b.WriteString(fmt.Sprintf("\nUNAVAILABLE: %s", strings.Join(s.Unavailable, ", ")))
	}
	return b.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
