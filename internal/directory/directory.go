// Package directory loads the link directory through its fallback chain:
// the fast key-value cache first, then the static document.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/franciscoquinteros/landing-anto/internal/metrics"
	"github.com/franciscoquinteros/landing-anto/internal/model"
	"github.com/franciscoquinteros/landing-anto/internal/store"
)

// CurrentKey is the site-data cache key holding the latest document.
const CurrentKey = "current"

// Load sources reported to metrics.
const (
	SourceCache  = "cache"
	SourceStatic = "static"
	SourceNone   = "unavailable"
)

// ErrUnavailable is returned when no source produced a usable document.
var ErrUnavailable = errors.New("site data unavailable")

// Source fetches the static copy of the document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Loader resolves the current document.
type Loader struct {
	cache   store.Store
	static  Source
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewLoader creates a Loader. cache or static may be nil to skip that step.
func NewLoader(cache store.Store, static Source, recorder metrics.Recorder, logger *slog.Logger) *Loader {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Loader{
		cache:   cache,
		static:  static,
		metrics: recorder,
		logger:  logger.With("component", "directory"),
	}
}

// Load returns the decoded document.
func (l *Loader) Load(ctx context.Context) (*model.Directory, error) {
	raw, err := l.LoadRaw(ctx)
	if err != nil {
		return nil, err
	}
	var dir model.Directory
	if err := json.Unmarshal(raw, &dir); err != nil {
		// LoadRaw only returns JSON objects, so this means a field has the wrong type.
		l.logger.Error("directory_decode_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &dir, nil
}

// LoadRaw returns the document bytes exactly as stored.
func (l *Loader) LoadRaw(ctx context.Context) ([]byte, error) {
	if raw, ok := l.fromCache(ctx); ok {
		l.metrics.IncDirectoryLoad(SourceCache)
		return raw, nil
	}

	if l.static != nil {
		raw, err := l.static.Fetch(ctx)
		if err != nil {
			l.logger.Warn("directory_static_failed", "error", err)
		} else if !isJSONObject(raw) {
			l.logger.Warn("directory_static_invalid")
		} else {
			l.metrics.IncDirectoryLoad(SourceStatic)
			return raw, nil
		}
	}

	l.metrics.IncDirectoryLoad(SourceNone)
	return nil, ErrUnavailable
}

func (l *Loader) fromCache(ctx context.Context) ([]byte, bool) {
	if l.cache == nil {
		return nil, false
	}

	raw, err := l.cache.Get(ctx, CurrentKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.logger.Debug("directory_cache_miss")
		return nil, false
	case err != nil:
		l.logger.Warn("directory_cache_failed", "error", err)
		return nil, false
	}

	if !isJSONObject(raw) {
		// Includes a stored literal null.
		l.logger.Warn("directory_cache_invalid", "size", len(raw))
		return nil, false
	}
	return raw, true
}

// Refresh writes raw to the cache so subsequent loads see it.
func (l *Loader) Refresh(ctx context.Context, raw []byte) error {
	if l.cache == nil {
		return nil
	}
	if err := l.cache.Set(ctx, CurrentKey, raw); err != nil {
		return fmt.Errorf("refresh site data cache: %w", err)
	}
	return nil
}

func isJSONObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}
