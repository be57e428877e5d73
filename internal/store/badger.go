package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Badger is the embedded backend. Keys are "namespace/key".
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadger opens (or creates) a Badger database at path.
func OpenBadger(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogger{logger: logger.With("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at %s: %w", path, err)
	}
	logger.Info("badger opened", "path", path)

	return &Badger{db: db, logger: logger}, nil
}

// Store returns the namespace ns.
func (b *Badger) Store(ns string) Store {
	return namespace{kv: b, name: ns}
}

// Ping reports whether the database is still open.
func (b *Badger) Ping(ctx context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func badgerPrefix(ns string) []byte {
	return []byte(ns + "/")
}

func badgerKey(ns, key string) []byte {
	return []byte(ns + "/" + key)
}

func (b *Badger) get(ctx context.Context, ns, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(ns, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s/%s: %w", ns, key, err)
	}
	return value, nil
}

func (b *Badger) set(ctx context.Context, ns, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(badgerKey(ns, key), value))
	})
	if err != nil {
		return fmt.Errorf("badger set %s/%s: %w", ns, key, err)
	}
	return nil
}

func (b *Badger) list(ctx context.Context, ns string) ([]string, error) {
	prefix := badgerPrefix(ns)
	keys := []string{}

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list %s: %w", ns, err)
	}
	return keys, nil
}

// badgerLogger adapts slog to Badger's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}
