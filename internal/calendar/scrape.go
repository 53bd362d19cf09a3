package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BullionWatch/internal/model"
)

// Scraper reads an HTML economic calendar laid out as one table row per event.
type Scraper struct {
	URL      string
	Client   *http.Client
	Location *time.Location // timezone the page renders times in
}

// NewScraper creates a calendar page scraper.
func NewScraper(url string, client *http.Client, loc *time.Location) *Scraper {
	if loc == nil {
		loc = time.UTC
	}
	return &Scraper{URL: url, Client: client, Location: loc}
}

// Tier exposes the scraper as the first fallback tier.
func (s *Scraper) Tier() Tier {
	return Tier{Name: model.TierScraped, Fetch: s.Fetch}
}

func (s *Scraper) Fetch(ctx context.Context, req Request) ([]model.Event, error) {
	body, err := fetchPage(ctx, s.Client, s.URL)
	if err != nil {
		return nil, fmt.Errorf("scrape calendar: %w", err)
	}
	return ParseCalendar(bytes.NewReader(body), req.Now, s.Location)
}

var dayPattern = regexp.MustCompile(`(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s*(\d{1,2})`)

// ParseCalendar extracts events from calendar markup. Rows without an impact
// marker, a title or a parseable time are skipped; a page with no rows yields
// an empty result, not an error.
func ParseCalendar(r io.Reader, now time.Time, loc *time.Location) ([]model.Event, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar html: %w", err)
	}

	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	lastClock := ""
	var events []model.Event

	doc.Find("tr.calendar__row").Each(func(_ int, row *goquery.Selection) {
		if text := strings.TrimSpace(row.Find("td.calendar__date").Text()); text != "" {
			if d, ok := parseDay(text, local); ok {
				day = d
			}
		}
		// An empty time cell repeats the previous row's time.
		clock := strings.TrimSpace(row.Find("td.calendar__time").Text())
		if clock == "" {
			clock = lastClock
		} else {
			lastClock = clock
		}

		impact, ok := impactOf(row.Find("td.calendar__impact"))
		if !ok {
			return
		}
		title := strings.TrimSpace(row.Find(".calendar__event-title").Text())
		if title == "" {
			title = strings.TrimSpace(row.Find("td.calendar__event").Text())
		}
		if title == "" {
			return
		}
		at, ok := parseClock(day, clock)
		if !ok {
			return
		}
		events = append(events, model.Event{
			Title:    title,
			Time:     at.UTC(),
			Impact:   impact,
			Currency: strings.ToUpper(strings.TrimSpace(row.Find("td.calendar__currency").Text())),
			Source:   model.TierScraped,
		})
	})
	return events, nil
}

// impactOf reads the impact icon class or title inside an impact cell.
func impactOf(cell *goquery.Selection) (model.Impact, bool) {
	var markers []string
	cell.Find("span").AddSelection(cell).Each(func(_ int, s *goquery.Selection) {
		if c, ok := s.Attr("class"); ok {
			markers = append(markers, strings.ToLower(c))
		}
		if t, ok := s.Attr("title"); ok {
			markers = append(markers, strings.ToLower(t))
		}
	})
	joined := strings.Join(markers, " ")
	switch {
	case strings.Contains(joined, "impact-red"), strings.Contains(joined, "impact-high"), strings.Contains(joined, "high impact"):
		return model.ImpactHigh, true
	case strings.Contains(joined, "impact-ora"), strings.Contains(joined, "impact-medium"), strings.Contains(joined, "medium impact"):
		return model.ImpactMedium, true
	case strings.Contains(joined, "impact-yel"), strings.Contains(joined, "impact-low"), strings.Contains(joined, "low impact"):
		return model.ImpactLow, true
	}
	return "", false
}

// parseDay reads "Mon Jun 3" style cells, choosing the year closest to ref.
func parseDay(text string, ref time.Time) (time.Time, bool) {
	m := dayPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	month, err := time.Parse("Jan", m[1])
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	t := time.Date(ref.Year(), month.Month(), d, 0, 0, 0, 0, ref.Location())
	switch {
	case t.Before(ref.AddDate(0, -6, 0)):
		t = t.AddDate(1, 0, 0)
	case t.After(ref.AddDate(0, 6, 0)):
		t = t.AddDate(-1, 0, 0)
	}
	return t, true
}

// parseClock combines a day with "8:30am". All-day and tentative rows fail.
func parseClock(day time.Time, clock string) (time.Time, bool) {
	c, err := time.Parse("3:04pm", strings.ToLower(strings.ReplaceAll(clock, " ", "")))
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, day.Location()), true
}
