// Package cache persists analysis reports keyed by pattern and configuration.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/KromDaniel/redos/pkg/redos"
)

// keyPrefix namespaces report entries.
const keyPrefix = "report/"

// Config configures the cache.
type Config struct {
	// Path is the directory for the database files. Ignored when InMemory
	// is true.
	Path string

	// InMemory keeps everything in memory; used by tests.
	InMemory bool

	// TTL expires entries; zero keeps them forever.
	TTL time.Duration

	// Logger receives badger's own messages. Nil disables them.
	Logger *slog.Logger
}

// Cache stores definitive reports. Timeouts and failures are never cached:
// a later run with more time may still reach a verdict.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens or creates the cache.
func Open(cfg Config) (*Cache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db, ttl: cfg.TTL}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key derives the cache key of a pattern under a configuration fingerprint.
func Key(fingerprint, pattern string) []byte {
	sum := sha256.Sum256([]byte(fingerprint + "\x00" + pattern))
	return []byte(keyPrefix + hex.EncodeToString(sum[:]))
}

// Get returns the cached report, or false when there is none.
func (c *Cache) Get(fingerprint, pattern string) (*redos.Report, bool, error) {
	var report redos.Report
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(fingerprint, pattern))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached report: %w", err)
	}
	return &report, true, nil
}

// Put stores a definitive report. Inconclusive reports are ignored.
func (c *Cache) Put(fingerprint string, report *redos.Report) error {
	if report.Inconclusive() {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(Key(fingerprint, report.Pattern), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

// Len counts the cached reports.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
