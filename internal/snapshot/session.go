package snapshot

import (
	"fmt"
	"strings"
	"time"

	"BullionWatch/internal/config"
	"BullionWatch/internal/model"
)

// OffHours is reported when no session is open.
const OffHours = "OFF-HOURS"

// Overlap window of the London and New York sessions, UTC hours.
const (
	overlapName  = "LONDON/NY"
	overlapStart = 13
	overlapEnd   = 17
)

// Session is a daily UTC window in minutes after midnight, bounds inclusive.
type Session struct {
	Name       string
	Start, End int
}

// ParseSessions converts configured "HH:MM" windows.
func ParseSessions(in []config.Session) ([]Session, error) {
	out := make([]Session, 0, len(in))
	for _, s := range in {
		start, err := time.Parse("15:04", s.Start)
		if err != nil {
			return nil, fmt.Errorf("session %s start: %w", s.Name, err)
		}
		end, err := time.Parse("15:04", s.End)
		if err != nil {
			return nil, fmt.Errorf("session %s end: %w", s.Name, err)
		}
		out = append(out, Session{
			Name:  s.Name,
			Start: start.Hour()*60 + start.Minute(),
			End:   end.Hour()*60 + end.Minute(),
		})
	}
	return out, nil
}

func (s Session) contains(minute int) bool {
	if s.Start <= s.End {
		return minute >= s.Start && minute <= s.End
	}
	// wraps midnight
	return minute >= s.Start || minute <= s.End
}

// CurrentSession joins the names of every open session with "/".
func CurrentSession(sessions []Session, now time.Time) string {
	now = now.UTC()
	minute := now.Hour()*60 + now.Minute()
	var open []string
	for _, s := range sessions {
		if s.contains(minute) {
			open = append(open, s.Name)
		}
	}
	if len(open) == 0 {
		return OffHours
	}
	return strings.Join(open, "/")
}

// NextOverlap reports the London/New York overlap: active now, or minutes
// until it next opens.
func NextOverlap(now time.Time) model.SessionOverlap {
	now = now.UTC()
	if now.Hour() >= overlapStart && now.Hour() < overlapEnd {
		return model.SessionOverlap{Session: overlapName, Active: true}
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), overlapStart, 0, 0, 0, time.UTC)
	if now.Hour() >= overlapEnd {
		start = start.AddDate(0, 0, 1)
	}
	return model.SessionOverlap{Session: overlapName, MinutesUntil: int(start.Sub(now).Minutes())}
}
