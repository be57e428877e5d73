// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Redirect results.
const (
	ResultSuccess     = "success"
	ResultNotFound    = "not_found"
	ResultBadRequest  = "bad_request"
	ResultUnavailable = "unavailable"
)

// Click logging steps.
const (
	StepCount  = "count"
	StepEvent  = "event"
	StepNotify = "notify"
)

// Step and write statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Redirect metrics
	IncRedirect(result string)
	ObserveRedirectDuration(duration time.Duration)

	// Directory fallback chain: source is "cache", "static" or "unavailable"
	IncDirectoryLoad(source string)

	// Background click logging
	IncClickStep(step, status string)

	// Owner edits: kind is "site_data", "profile_image" or "link_image"
	IncDocumentWrite(kind, status string)
}
