package sled

import (
	"encoding/json"
	"errors"
	"math/rand"
)

// errStop ends a forEach walk early.
var errStop = errors.New("stop")

// HasAll reports whether every one of keys exists.  It is true for an
// empty list.
func (s *Store) HasAll(keys ...string) (ok bool, err error) {
	err = s.withSession("hasall", func(ss *session) error {
		ok = true
		for _, key := range keys {
			found, err := ss.has(key)
			if err != nil {
				return err
			}
			if !found {
				ok = false
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return
}

// HasAny reports whether at least one of keys exists.  It is false
// for an empty list.
func (s *Store) HasAny(keys ...string) (ok bool, err error) {
	err = s.withSession("hasany", func(ss *session) error {
		for _, key := range keys {
			found, err := ss.has(key)
			if err != nil {
				return err
			}
			if found {
				ok = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return
}

// Random returns a uniformly chosen entry.  found is false if the
// store is empty.
func (s *Store) Random() (e Entry, found bool, err error) {
	err = s.withSession("random", func(ss *session) error {
		n, err := ss.eng.Len()
		if err != nil {
			return ss.fail(ErrEngine, err)
		}
		if n == 0 {
			return nil
		}
		i := rand.Intn(n)
		err = ss.forEach(func(k, v []byte) error {
			if i > 0 {
				i--
				return nil
			}
			e, err = ss.entry(k, v)
			if err != nil {
				return err
			}
			found = true
			return errStop
		})
		if err == errStop {
			return nil
		}
		return err
	})
	if err != nil {
		return Entry{}, false, err
	}
	return
}

// SetBytes stores value under key.  value must be valid UTF-8.
func (s *Store) SetBytes(key string, value []byte) error {
	return s.set("setbytes", key, string(value))
}

// GetBytes returns the value stored under key and whether the key
// exists.
func (s *Store) GetBytes(key string) (value []byte, found bool, err error) {
	str, found, err := s.lookup("getbytes", key)
	if err != nil || !found {
		return nil, found, err
	}
	return []byte(str), true, nil
}

// SetJSON stores the JSON encoding of v under key.
func (s *Store) SetJSON(key string, v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return s.fail("setjson", ErrDecode, err)
	}
	return s.set("setjson", key, string(buf))
}

// GetJSON decodes the value stored under key into v.  found is false,
// and v untouched, if the key does not exist.
func (s *Store) GetJSON(key string, v interface{}) (found bool, err error) {
	str, found, err := s.lookup("getjson", key)
	if err != nil || !found {
		return false, err
	}
	err = json.Unmarshal([]byte(str), v)
	if err != nil {
		return true, s.fail("getjson", ErrDecode, err)
	}
	return true, nil
}

// Delete removes key and reports whether it was there.
func (s *Store) Delete(key string) (existed bool, err error) {
	err = s.withSession("delete", func(ss *session) (err error) {
		existed, err = ss.has(key)
		if err != nil || !existed {
			return
		}
		err = ss.eng.Delete([]byte(key))
		if err != nil {
			return ss.fail(ErrEngine, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return
}
