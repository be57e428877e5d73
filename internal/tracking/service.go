// Package tracking resolves link ids to destinations and records clicks
// without delaying the redirect.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/franciscoquinteros/landing-anto/internal/background"
	"github.com/franciscoquinteros/landing-anto/internal/metrics"
	"github.com/franciscoquinteros/landing-anto/internal/model"
	"github.com/franciscoquinteros/landing-anto/internal/store"
)

var (
	// ErrBadRequest indicates the link id was missing.
	ErrBadRequest = errors.New("missing link id")
	// ErrLinkNotFound indicates no link has the requested id.
	ErrLinkNotFound = errors.New("link not found")
	// ErrDataUnavailable indicates the link directory could not be loaded.
	ErrDataUnavailable = errors.New("site data unavailable")
)

// DirectoryLoader provides the current link directory.
type DirectoryLoader interface {
	Load(ctx context.Context) (*model.Directory, error)
}

// Notifier announces recorded clicks to other systems.
type Notifier interface {
	NotifyClick(ctx context.Context, linkID string, event model.ClickEvent) error
}

// Service handles redirect resolution and click recording.
type Service struct {
	directory DirectoryLoader
	clicks    store.Store
	events    store.Store
	scheduler background.Scheduler
	notifier  Notifier
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service. A nil scheduler runs click recording in
// detached goroutines; a nil notifier disables click notifications.
func NewService(
	directory DirectoryLoader,
	clicks, events store.Store,
	scheduler background.Scheduler,
	notifier Notifier,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Service {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	logger = logger.With("component", "tracking")
	if scheduler == nil {
		scheduler = background.Detached{Logger: logger}
	}
	return &Service{
		directory: directory,
		clicks:    clicks,
		events:    events,
		scheduler: scheduler,
		notifier:  notifier,
		metrics:   recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Resolve returns the destination URL for linkID and schedules the click
// to be recorded. Recording never delays or fails the redirect.
func (s *Service) Resolve(ctx context.Context, linkID string, meta RequestMeta) (string, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	if linkID == "" {
		s.metrics.IncRedirect(metrics.ResultBadRequest)
		return "", ErrBadRequest
	}

	dir, err := s.directory.Load(ctx)
	if err != nil {
		s.metrics.IncRedirect(metrics.ResultUnavailable)
		return "", fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	url, ok := dir.FindURL(linkID)
	if !ok {
		s.metrics.IncRedirect(metrics.ResultNotFound)
		return "", ErrLinkNotFound
	}

	s.metrics.IncRedirect(metrics.ResultSuccess)
	s.scheduler.Go(ctx, "record_click", func(ctx context.Context) {
		s.RecordClick(ctx, linkID, meta)
	})
	return url, nil
}

// RecordClick increments the link's counter, appends an event to its log
// and sends the optional notification. Each step runs even if an earlier
// one failed; failures are logged and counted, never returned.
func (s *Service) RecordClick(ctx context.Context, linkID string, meta RequestMeta) {
	s.incrementCount(ctx, linkID)
	event := s.appendEvent(ctx, linkID, meta)
	s.notify(ctx, linkID, event)
}

func (s *Service) incrementCount(ctx context.Context, linkID string) {
	var current int64

	raw, err := s.clicks.Get(ctx, linkID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		s.stepFailed(metrics.StepCount, "click_count_failed", linkID, err)
		return
	default:
		current = ParseCount(raw)
		if current == 0 && strings.TrimSpace(string(raw)) != "0" {
			s.logger.Warn("click_count_unparseable", "link_id", linkID, "value", truncateForLog(raw))
		}
	}

	next := strconv.FormatInt(current+1, 10)
	if err := s.clicks.Set(ctx, linkID, []byte(next)); err != nil {
		s.stepFailed(metrics.StepCount, "click_count_failed", linkID, err)
		return
	}
	s.metrics.IncClickStep(metrics.StepCount, metrics.StatusSuccess)
}

// appendEvent stores a new event for linkID and returns it. The event is
// returned even when it could not be stored.
func (s *Service) appendEvent(ctx context.Context, linkID string, meta RequestMeta) model.ClickEvent {
	event := model.ClickEvent{
		Timestamp:    s.now().UTC(),
		ReferrerHost: ReferrerHost(meta.Referrer),
		UserAgent:    TruncateUserAgent(meta.UserAgent),
		CountryCode:  CountryCode(meta.Country),
	}

	var existing []json.RawMessage
	raw, err := s.events.Get(ctx, linkID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		s.stepFailed(metrics.StepEvent, "click_event_failed", linkID, err)
		return event
	default:
		if err := json.Unmarshal(raw, &existing); err != nil {
			s.logger.Warn("click_events_reset", "link_id", linkID, "error", err)
			existing = nil
		}
	}
	event.Timestamp = nextTimestamp(event.Timestamp, existing)

	encoded, err := json.Marshal(event)
	if err != nil {
		s.stepFailed(metrics.StepEvent, "click_event_failed", linkID, err)
		return event
	}

	updated := AppendEvent(existing, encoded, model.MaxEventsPerLink)
	if err := store.SetJSON(ctx, s.events, linkID, updated); err != nil {
		s.stepFailed(metrics.StepEvent, "click_event_failed", linkID, err)
		return event
	}

	s.metrics.IncClickStep(metrics.StepEvent, metrics.StatusSuccess)
	s.logger.Debug("click_recorded", "link_id", linkID, "events", len(updated))
	return event
}

func (s *Service) notify(ctx context.Context, linkID string, event model.ClickEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyClick(ctx, linkID, event); err != nil {
		s.stepFailed(metrics.StepNotify, "click_notify_failed", linkID, err)
		return
	}
	s.metrics.IncClickStep(metrics.StepNotify, metrics.StatusSuccess)
}

func (s *Service) stepFailed(step, msg, linkID string, err error) {
	s.metrics.IncClickStep(step, metrics.StatusFailed)
	s.logger.Error(msg, "link_id", linkID, "error", err)
}

// ParseCount decodes a stored click count. Anything that is not a
// non-negative decimal integer counts as zero.
func ParseCount(raw []byte) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// AppendEvent appends event and drops the oldest entries so that at most
// limit remain.
func AppendEvent(events []json.RawMessage, event json.RawMessage, limit int) []json.RawMessage {
	events = append(events, event)
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events
}

// nextTimestamp returns now, or one microsecond past the newest stored
// event when the clock has not moved beyond it.
func nextTimestamp(now time.Time, existing []json.RawMessage) time.Time {
	if len(existing) == 0 {
		return now
	}
	var last struct {
		T time.Time `json:"t"`
	}
	if err := json.Unmarshal(existing[len(existing)-1], &last); err != nil || last.T.IsZero() {
		return now
	}
	if !now.After(last.T) {
		return last.T.UTC().Add(time.Microsecond)
	}
	return now
}

func truncateForLog(raw []byte) string {
	const limit = 64
	if len(raw) > limit {
		return string(raw[:limit])
	}
	return string(raw)
}
