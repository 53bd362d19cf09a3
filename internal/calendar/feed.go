package calendar

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"BullionWatch/internal/model"
)

var currencyPattern = regexp.MustCompile(`\b(USD|EUR|GBP|JPY|AUD|CAD|CHF|NZD|CNY)\b`)

// FeedReader reads an RSS/Atom feed of economic news and rates impact by keyword.
type FeedReader struct {
	URL      string
	Client   *http.Client
	keywords *regexp.Regexp
}

// NewFeedReader matches keywords case-insensitively as whole words, allowing
// a plural suffix ("Payrolls", "Rates").
func NewFeedReader(url string, client *http.Client, keywords []string) *FeedReader {
	quoted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			quoted = append(quoted, regexp.QuoteMeta(k))
		}
	}
	pattern := `a^` // matches nothing
	if len(quoted) > 0 {
		pattern = `(?i)\b(` + strings.Join(quoted, "|") + `)(?:e?s)?\b`
	}
	return &FeedReader{URL: url, Client: client, keywords: regexp.MustCompile(pattern)}
}

// Tier exposes the reader as the second fallback tier.
func (f *FeedReader) Tier() Tier {
	return Tier{Name: model.TierFeed, Fetch: f.Fetch}
}

func (f *FeedReader) Fetch(ctx context.Context, req Request) ([]model.Event, error) {
	fp := gofeed.NewParser()
	fp.Client = f.Client
	fp.UserAgent = browserAgent
	feed, err := fp.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return f.Events(feed, req.Currency), nil
}

// Events converts feed items. Items without a usable date or title are skipped.
func (f *FeedReader) Events(feed *gofeed.Feed, defaultCurrency string) []model.Event {
	events := make([]model.Event, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		at := item.PublishedParsed
		if at == nil {
			at = item.UpdatedParsed
		}
		if title == "" || at == nil {
			continue
		}
		impact := model.ImpactMedium
		if f.keywords.MatchString(title) {
			impact = model.ImpactHigh
		}
		currency := defaultCurrency
		if m := currencyPattern.FindString(strings.ToUpper(title)); m != "" {
			currency = m
		}
		events = append(events, model.Event{
			Title:       title,
			Description: plainText(item.Description, 200),
			Time:        at.UTC(),
			Impact:      impact,
			Currency:    currency,
			Source:      model.TierFeed,
		})
	}
	return events
}

func plainText(html string, max int) string {
	if html == "" {
		return ""
	}
	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
