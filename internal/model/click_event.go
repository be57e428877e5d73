package model

import "time"

// MaxEventsPerLink caps the per-link event log. Older events are evicted first.
const MaxEventsPerLink = 1000

// MaxUserAgentLength is the number of characters of User-Agent kept per event.
const MaxUserAgentLength = 200

// ClickEvent represents a single processed click.
// The short JSON names are the wire shape the dashboard reads.
type ClickEvent struct {
	Timestamp    time.Time `json:"t"`
	ReferrerHost *string   `json:"r"`  // Host of the Referer header, null if absent
	UserAgent    string    `json:"ua"` // Truncated to MaxUserAgentLength
	CountryCode  *string   `json:"co"` // ISO 3166-1 alpha-2, null if unknown
}
