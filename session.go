package sled

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"

	"github.com/stevegt/sled/engine"
	"github.com/stevegt/sled/engine/bbolt"
	"github.com/stevegt/sled/engine/pebble"
	"github.com/stevegt/sled/log"
)

var (
	_ engine.Engine = (*bbolt.Db)(nil)
	_ engine.Engine = (*pebble.KVStore)(nil)
)

// lockRetryDelay is how often a bounded lock file wait retries.
const lockRetryDelay = 10 * time.Millisecond

// session is one open engine handle, scoped to a single public
// operation.  It is created and released by withSession only.
type session struct {
	op    string
	store *Store
	eng   engine.Engine
}

// withSession runs fn against a freshly opened engine handle.  The
// handle is flushed and closed on every exit path, including when fn
// fails or panics, before withSession returns.  Nothing is retried:
// a store locked by another session surfaces as ErrOpen.
func (s *Store) withSession(op string, fn func(*session) error) error {
	if s.serial != nil {
		err := s.serial.do(func() error {
			return s.runSession(op, fn)
		})
		if err == ErrClosed {
			return s.fail(op, ErrClosed, nil)
		}
		return err
	}
	return s.runSession(op, fn)
}

func (s *Store) runSession(op string, fn func(*session) error) (err error) {
	start := time.Now()
	logger := log.Session.With().Str("store", s.cfg.Name).Str("op", op).Logger()

	if s.cfg.LockFile {
		var lock *flock.Flock
		lock, err = s.lockFile()
		if err != nil {
			logger.Warn().Err(err).Dur("waited", time.Since(start)).Msg("lock file busy")
			return s.fail(op, ErrOpen, err)
		}
		defer func() {
			uerr := lock.Unlock()
			if uerr != nil && err == nil {
				err = s.fail(op, ErrFlush, uerr)
			}
		}()
	}

	eng, err := s.open()
	if err != nil {
		logger.Warn().Err(err).Dur("waited", time.Since(start)).Msg("open failed")
		return s.fail(op, ErrOpen, err)
	}
	logger.Debug().Dur("waited", time.Since(start)).Msg("session opened")

	defer func() {
		// flush even after a failed action so that no write is
		// silently dropped
		ferr := eng.Flush()
		cerr := eng.Close()
		if ferr != nil {
			logger.Warn().Err(ferr).Msg("flush failed")
		}
		if cerr != nil {
			logger.Warn().Err(cerr).Msg("close failed")
		}
		if err == nil {
			if ferr != nil {
				err = s.fail(op, ErrFlush, ferr)
			} else if cerr != nil {
				err = s.fail(op, ErrFlush, cerr)
			}
		}
		logger.Debug().Dur("elapsed", time.Since(start)).Err(err).Msg("session closed")
	}()

	return fn(&session{op: op, store: s, eng: eng})
}

// openEngine opens the configured engine on the store location.
func (s *Store) openEngine() (engine.Engine, error) {
	switch s.cfg.Engine {
	case EnginePebble:
		kv, err := pebble.Open(s.cfg.Name)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		db, err := bbolt.Open(s.cfg.Name, bbolt.Options{
			Timeout: s.cfg.OpenTimeout,
			Codec:   s.cfg.Codec,
		})
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

// lockFile takes the exclusive lock on Name + ".lock", waiting at most
// OpenTimeout if one is set.
func (s *Store) lockFile() (lock *flock.Flock, err error) {
	lock = flock.New(s.cfg.Name + ".lock")
	if s.cfg.OpenTimeout == 0 {
		err = lock.Lock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpenTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%s: held by another session", lock.Path())
	}
	return lock, nil
}

func (ss *session) fail(kind, cause error) error {
	return ss.store.fail(ss.op, kind, cause)
}

// key converts a stored key to text.
func (ss *session) key(buf []byte) (string, error) {
	if !utf8.Valid(buf) {
		return "", ss.fail(ErrDecode, fmt.Errorf("stored key %q is not valid UTF-8", buf))
	}
	return string(buf), nil
}

// value decodes a stored value and converts it to text.
func (ss *session) value(buf []byte) (string, error) {
	buf, err := ss.store.codec.Decode(buf)
	if err != nil {
		return "", ss.fail(ErrDecode, fmt.Errorf("%s codec: %w", ss.store.codec.Name(), err))
	}
	if !utf8.Valid(buf) {
		return "", ss.fail(ErrDecode, fmt.Errorf("stored value is not valid UTF-8"))
	}
	return string(buf), nil
}

func (ss *session) get(key string) (value string, found bool, err error) {
	buf, found, err := ss.eng.Get([]byte(key))
	if err != nil {
		return "", false, ss.fail(ErrEngine, err)
	}
	if !found {
		return "", false, nil
	}
	value, err = ss.value(buf)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (ss *session) put(key, value string) error {
	buf, err := ss.store.codec.Encode([]byte(value))
	if err != nil {
		return ss.fail(ErrEngine, fmt.Errorf("%s codec: %w", ss.store.codec.Name(), err))
	}
	err = ss.eng.Put([]byte(key), buf)
	if err != nil {
		return ss.fail(ErrEngine, err)
	}
	return nil
}

func (ss *session) has(key string) (bool, error) {
	ok, err := ss.eng.Has([]byte(key))
	if err != nil {
		return false, ss.fail(ErrEngine, err)
	}
	return ok, nil
}

// bound returns the value found by first or last.
func (ss *session) bound(seek func() ([]byte, []byte, bool, error)) (string, error) {
	_, buf, found, err := seek()
	if err != nil {
		return "", ss.fail(ErrEngine, err)
	}
	if !found {
		return "", nil
	}
	return ss.value(buf)
}

// forEach walks every entry in key order.  Errors returned by fn are
// passed through unchanged.
func (ss *session) forEach(fn func(key, value []byte) error) error {
	var fnErr error
	err := ss.eng.ForEach(func(k, v []byte) error {
		fnErr = fn(k, v)
		return fnErr
	})
	if err != nil {
		if fnErr != nil {
			return fnErr
		}
		return ss.fail(ErrEngine, err)
	}
	return nil
}
