package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/franciscoquinteros/landing-anto/internal/store"
	"github.com/franciscoquinteros/landing-anto/internal/tracking"
)

// AnalyticsService reads the click counters and event logs.
type AnalyticsService struct {
	clicks store.Store
	events store.Store
	logger *slog.Logger
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(clicks, events store.Store, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{
		clicks: clicks,
		events: events,
		logger: logger.With("component", "analytics"),
	}
}

// ClickCounts returns the count of every link that has been clicked.
func (s *AnalyticsService) ClickCounts(ctx context.Context) (map[string]int64, error) {
	keys, err := s.clicks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list click counters: %w", err)
	}

	counts := make(map[string]int64, len(keys))
	for _, key := range keys {
		raw, err := s.clicks.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read click counter %s: %w", key, err)
		}
		counts[key] = tracking.ParseCount(raw)
	}
	return counts, nil
}

// Events returns the event log of one link. A link without events yields
// an empty list.
func (s *AnalyticsService) Events(ctx context.Context, linkID string) ([]json.RawMessage, error) {
	raw, err := s.events.Get(ctx, linkID)
	if errors.Is(err, store.ErrNotFound) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read events %s: %w", linkID, err)
	}
	return s.decodeEvents(linkID, raw), nil
}

// AllEvents returns the event logs of every link, keyed by link id.
func (s *AnalyticsService) AllEvents(ctx context.Context) (map[string][]json.RawMessage, error) {
	keys, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list event logs: %w", err)
	}

	result := make(map[string][]json.RawMessage, len(keys))
	for _, key := range keys {
		events, err := s.Events(ctx, key)
		if err != nil {
			return nil, err
		}
		result[key] = events
	}
	return result, nil
}

func (s *AnalyticsService) decodeEvents(linkID string, raw []byte) []json.RawMessage {
	var events []json.RawMessage
	if err := json.Unmarshal(raw, &events); err != nil {
		s.logger.Warn("events_not_a_list", "link_id", linkID, "error", err)
		return []json.RawMessage{}
	}
	if events == nil {
		return []json.RawMessage{}
	}
	return events
}
