// Package sled is a durable string map kept in a single file (or
// directory) on disk.
//
// There is no long-lived database handle.  Every Store method opens
// the store location, performs exactly one logical action, flushes,
// and closes again before returning.  Concurrent callers, in this
// process or another, therefore race for the engine's single-writer
// lock: with the default bbolt engine a second session waits for the
// first (up to Config.OpenTimeout, if set), with pebble it fails at
// once.  Lock contention is reported as ErrOpen and never retried.
// Set Config.Serialize to queue a Store's operations on one goroutine
// instead.
package sled

import (
	"fmt"
	"unicode/utf8"

	"github.com/stevegt/sled/codec"
	"github.com/stevegt/sled/engine"
	"github.com/stevegt/sled/engine/bbolt"
)

// Version is the version of this package.
const Version = "0.1.0"

// Store is a configured store location.  It holds no open handle and
// is safe for concurrent use.
type Store struct {
	cfg    Config
	codec  codec.Codec
	serial *serializer
	// open returns a fresh engine handle for one session.
	open func() (engine.Engine, error)
}

// New returns a Store for cfg.  Nothing is opened until the first
// operation.
func New(cfg Config) (s *Store, err error) {
	err = cfg.validate()
	if err != nil {
		return nil, configError(cfg.Name, err)
	}
	c, err := codec.Lookup(cfg.Codec)
	if err != nil {
		return nil, configError(cfg.Name, err)
	}
	s = &Store{cfg: cfg, codec: c}
	s.open = s.openEngine
	if cfg.Serialize {
		s.serial = newSerializer()
	}
	return s, nil
}

// Open loads the config file at base and returns its Store.
func Open(base string) (*Store, error) {
	cfg, err := LoadConfig(base)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Config returns the store's configuration with defaults filled in.
func (s *Store) Config() Config {
	return s.cfg
}

// Close stops the owner goroutine of a serialized Store.  It is a
// no-op otherwise, since there is never an open handle to release.
func (s *Store) Close() error {
	if s.serial != nil {
		s.serial.close()
	}
	return nil
}

// checkText rejects keys and values that cannot be stored as text.
func (s *Store) checkText(op, key string, value *string) error {
	if key == "" {
		return s.fail(op, ErrEmptyKey, nil)
	}
	if !utf8.ValidString(key) {
		return s.fail(op, ErrDecode, fmt.Errorf("key %q is not valid UTF-8", key))
	}
	if value != nil && !utf8.ValidString(*value) {
		return s.fail(op, ErrDecode, fmt.Errorf("value for %q is not valid UTF-8", key))
	}
	return nil
}

func (s *Store) set(op, key, value string) error {
	err := s.checkText(op, key, &value)
	if err != nil {
		return err
	}
	return s.withSession(op, func(ss *session) error {
		return ss.put(key, value)
	})
}

// Set stores value under key, replacing any previous value, and
// returns value.  The write is flushed before Set returns.
func (s *Store) Set(key, value string) (string, error) {
	err := s.set("set", key, value)
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) lookup(op, key string) (value string, found bool, err error) {
	err = s.withSession(op, func(ss *session) (err error) {
		value, found, err = ss.get(key)
		return
	})
	if err != nil {
		return "", false, err
	}
	return
}

// Get returns the value stored under key, or "" if there is none.
// A missing key and an empty value look the same here; use Lookup or
// Has to tell them apart.
func (s *Store) Get(key string) (string, error) {
	value, _, err := s.lookup("get", key)
	return value, err
}

// Lookup returns the value stored under key and whether the key
// exists.
func (s *Store) Lookup(key string) (value string, found bool, err error) {
	return s.lookup("lookup", key)
}

// Has reports whether key exists.
func (s *Store) Has(key string) (found bool, err error) {
	err = s.withSession("has", func(ss *session) (err error) {
		found, err = ss.has(key)
		return
	})
	return
}

// Remove deletes key.  Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	return s.withSession("remove", func(ss *session) error {
		err := ss.eng.Delete([]byte(key))
		if err != nil {
			return ss.fail(ErrEngine, err)
		}
		return nil
	})
}

// Size returns the number of entries.
func (s *Store) Size() (n int, err error) {
	err = s.withSession("size", func(ss *session) (err error) {
		n, err = ss.eng.Len()
		if err != nil {
			return ss.fail(ErrEngine, err)
		}
		return
	})
	return
}

// Clear removes every entry.  The store location itself is kept.
func (s *Store) Clear() error {
	return s.withSession("clear", func(ss *session) error {
		err := ss.eng.Clear()
		if err != nil {
			return ss.fail(ErrEngine, err)
		}
		return nil
	})
}

// First returns the value of the entry with the smallest key, or ""
// if the store is empty.
func (s *Store) First() (value string, err error) {
	err = s.withSession("first", func(ss *session) (err error) {
		value, err = ss.bound(ss.eng.First)
		return
	})
	return
}

// Last returns the value of the entry with the largest key, or "" if
// the store is empty.
func (s *Store) Last() (value string, err error) {
	err = s.withSession("last", func(ss *session) (err error) {
		value, err = ss.bound(ss.eng.Last)
		return
	})
	return
}

// FormatVersion returns the layout version recorded in the store.
// Only bbolt stores record one; pebble stores return "".
func (s *Store) FormatVersion() (version string, err error) {
	err = s.withSession("version", func(ss *session) (err error) {
		db, ok := ss.eng.(*bbolt.Db)
		if !ok {
			return nil
		}
		version, _, err = db.Meta()
		if err != nil {
			return ss.fail(ErrEngine, err)
		}
		return nil
	})
	return
}
