package model

import "time"

// Impact is the importance tier of a calendar event.
type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// SourceTier records which fallback tier produced an event.
type SourceTier string

const (
	TierScraped   SourceTier = "scraped"
	TierFeed      SourceTier = "feed"
	TierSynthetic SourceTier = "synthetic"
)

// Event is an upcoming economic calendar entry.
type Event struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Time        time.Time  `json:"time"`
	Impact      Impact     `json:"impact"`
	Currency    string     `json:"currency"`
	Source      SourceTier `json:"source"`
}
