// Package store provides the key-value capability used for the site cache,
// click counters and per-link event logs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/franciscoquinteros/landing-anto/internal/config"
)

// Namespaces used by the application.
const (
	NamespaceSiteData = "site-data"
	NamespaceClicks   = "clicks"
	NamespaceEvents   = "events"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("key not found")

// Store is a single namespace of string keys mapping to opaque values.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	List(ctx context.Context) ([]string, error)
}

// Backend hands out namespaced stores sharing one connection.
type Backend interface {
	Store(namespace string) Store
	Ping(ctx context.Context) error
	Close() error
}

// kv is implemented by every backend; namespace adapts it to Store.
type kv interface {
	get(ctx context.Context, ns, key string) ([]byte, error)
	set(ctx context.Context, ns, key string, value []byte) error
	list(ctx context.Context, ns string) ([]string, error)
}

type namespace struct {
	kv   kv
	name string
}

func (n namespace) Get(ctx context.Context, key string) ([]byte, error) {
	return n.kv.get(ctx, n.name, key)
}

func (n namespace) Set(ctx context.Context, key string, value []byte) error {
	return n.kv.set(ctx, n.name, key, value)
}

func (n namespace) List(ctx context.Context) ([]string, error) {
	return n.kv.list(ctx, n.name)
}

// GetJSON reads key and decodes it into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and writes it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// Open connects the backend selected by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendRedis:
		return NewRedis(ctx, cfg.RedisURL)
	case config.BackendBadger:
		return OpenBadger(cfg.BadgerPath, logger)
	case config.BackendPostgres:
		if err := Migrate(cfg.DatabaseURL, logger); err != nil {
			return nil, err
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	case config.BackendSQLite:
		return OpenSQL(ctx, cfg.SQLiteURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
