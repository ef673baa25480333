package sled

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	. "github.com/stevegt/goadapt"
)

var tmpDir string

func TestMain(m *testing.M) {
	// Create temporary directory
	var err error
	tmpDir, err = os.MkdirTemp("", "sled")
	Ck(err)

	// Run tests
	exitCode := m.Run()

	// Remove temporary directory
	err = os.RemoveAll(tmpDir)
	Ck(err)

	// Exit with test status code
	os.Exit(exitCode)
}

var engines = []string{EngineBolt, EnginePebble}

// storePath returns a store location unique to the running test.
func storePath(t *testing.T, engine string) string {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	return filepath.Join(tmpDir, name+"."+engine)
}

func newStore(t *testing.T, cfg Config) *Store {
	if cfg.Engine == "" {
		cfg.Engine = EngineBolt
	}
	if cfg.Name == "" {
		cfg.Name = storePath(t, cfg.Engine)
	}
	s, err := New(cfg)
	Tassert(t, err == nil, "new: %v", err)
	t.Cleanup(func() { s.Close() })
	return s
}

// eachEngine runs fn against a fresh store on every engine.
func eachEngine(t *testing.T, fn func(t *testing.T, s *Store)) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			fn(t, newStore(t, Config{Engine: engine}))
		})
	}
}

func setAll(t *testing.T, s *Store, pairs ...string) {
	Assert(len(pairs)%2 == 0, "odd number of arguments")
	for i := 0; i < len(pairs); i += 2 {
		_, err := s.Set(pairs[i], pairs[i+1])
		Tassert(t, err == nil, "set %q: %v", pairs[i], err)
	}
}

// As a caller, I want every value I set to come back from get.
func TestRoundTrip(t *testing.T) {
	cases := []struct{ key, value string }{
		{"a", "1"},
		{"key with spaces", "value with spaces"},
		{"ключ", "значение"},
		{"emoji", "🦀 and 🐹"},
		{"empty", ""},
		{"multi\nline", "line 1\nline 2\n"},
	}
	eachEngine(t, func(t *testing.T, s *Store) {
		for _, c := range cases {
			got, err := s.Set(c.key, c.value)
			Tassert(t, err == nil, "set %q: %v", c.key, err)
			Tassert(t, got == c.value, "set %q echoed %q", c.key, got)
		}
		for _, c := range cases {
			got, err := s.Get(c.key)
			Tassert(t, err == nil, "get %q: %v", c.key, err)
			Tassert(t, got == c.value, "get %q: want %q, got %q", c.key, c.value, got)
		}
		// overwrite
		setAll(t, s, "a", "2")
		got, err := s.Get("a")
		Tassert(t, err == nil, "get: %v", err)
		Tassert(t, got == "2", "got %q", got)
	})
}

// As a caller, I want to tell a stored empty value from a missing
// key.
func TestLookup(t *testing.T) {
	eachEngine(t, func(t *testing.T, s *Store) {
		setAll(t, s, "empty", "")

		value, found, err := s.Lookup("empty")
		Tassert(t, err == nil, "lookup: %v", err)
		Tassert(t, found && value == "", "found %v value %q", found, value)

		value, found, err = s.Lookup("missing")
		Tassert(t, err == nil, "lookup: %v", err)
		Tassert(t, !found && value == "", "found %v value %q", found, value)

		value, err = s.Get("missing")
		Tassert(t, err == nil, "get: %v", err)
		Tassert(t, value == "", "value %q", value)
	})
}

// As a caller, I want remove to be idempotent.
func TestRemove(t *testing.T) {
	eachEngine(t, func(t *testing.T, s *Store) {
		setAll(t, s, "k", "v", "other", "x")

		err := s.Remove("k")
		Tassert(t, err == nil, "remove: %v", err)
		err = s.Remove("k")
		Tassert(t, err == nil, "second remove: %v", err)
		err = s.Remove("never")
		Tassert(t, err == nil, "remove missing: %v", err)

		ok, err := s.Has("k")
		Tassert(t, err == nil && !ok, "has: %v %v", ok, err)
		n, err := s.Size()
		Tassert(t, err == nil && n == 1, "size: %d %v", n, err)
	})
}

// As a caller, I want first, last and keys to follow byte order no
// matter what order I insert in.
func TestOrdering(t *testing.T) {
	eachEngine(t, func(t *testing.T, s *Store) {
		setAll(t, s, "z", "zulu", "a", "alpha", "m", "mike", "B", "bravo")

		first, err := s.First()
		Tassert(t, err == nil, "first: %v", err)
		Tassert(t, first == "bravo", "first %q", first)
		last, err := s.Last()
		Tassert(t, err == nil, "last: %v", err)
		Tassert(t, last == "zulu", "last %q", last)

		keys, err := s.Keys()
		Tassert(t, err == nil, "keys: %v", err)
		want := []string{"B", "a", "m", "z"}
		Tassert(t, reflect.DeepEqual(keys, want), "keys %v", keys)

		values, err := s.Values()
		Tassert(t, err == nil, "values: %v", err)
		wantValues := []string{"bravo", "alpha", "mike", "zulu"}
		Tassert(t, reflect.DeepEqual(values, wantValues), "values %v", values)
	})
}

// As a caller, I want an empty store to answer with empty results
// rather than errors.
func TestEmptyStore(t *testing.T) {
	eachEngine(t, func(t *testing.T, s *Store) {
		setAll(t, s, "k", "v")
		err := s.Clear()
		Tassert(t, err == nil, "clear: %v", err)

		first, err := s.First()
		Tassert(t, err == nil && first == "", "first %q %v", first, err)
		last, err := s.Last()
		Tassert(t, err == nil && last == "", "last %q %v", last, err)
		value, err := s.Get("anything")
		Tassert(t, err == nil && value == "", "get %q %v", value, err)
		n, err := s.Size()
		Tassert(t, err == nil && n == 0, "size %d %v", n, err)
		ok, err := s.Has("k")
		Tassert(t, err == nil && !ok, "has %v %v", ok, err)

		keys, err := s.Keys()
		Tassert(t, err == nil && keys != nil && len(keys) == 0, "keys %#v %v", keys, err)
		values, err := s.Values()
		Tassert(t, err == nil && values != nil && len(values) == 0, "values %#v %v", values, err)
		all, err := s.All()
		Tassert(t, err == nil && all != nil && len(all) == 0, "all %#v %v", all, err)
		entries, err := s.Entries()
		Tassert(t, err == nil && entries != nil && len(entries) == 0, "entries %#v %v", entries, err)
	})
}

// As a caller, I want clear to empty the store and keep it usable.
func TestClear(t *testing.T) {
	eachEngine(t, func(t *testing.T, s *Store) {
		setAll(t, s, "k", "v")
		err := s.Clear()
		Tassert(t, err == nil, "clear: %v", err)
		n, err := s.Size()
		Tassert(t, err == nil && n == 0, "size %d %v", n, err)
		value, err := s.Get("k")
		Tassert(t, err == nil && value == "", "get %q %v", value, err)

		// clearing an empty store is fine too
		err = s.Clear()
		Tassert(t, err == nil, "clear: %v", err)

		setAll(t, s, "k2", "v2")
		n, err = s.Size()
		Tassert(t, err == nil && n == 1, "size %d %v", n, err)

		_, err = os.Stat(s.Config().Name)
		Tassert(t, err == nil, "store location removed: %v", err)
	})
}

func TestScenario(t *testing.T) {
	eachEngine(t, func(t *testing.T, s *Store) {
		setAll(t, s, "fruit", "apple", "veg", "carrot")

		n, err := s.Size()
		Tassert(t, err == nil && n == 2, "size %d %v", n, err)

		keys, err := s.Keys()
		Tassert(t, err == nil, "keys: %v", err)
		Tassert(t, reflect.DeepEqual(keys, []string{"fruit", "veg"}), "keys %v", keys)

		all, err := s.All()
		Tassert(t, err == nil, "all: %v", err)
		want := []map[string]string{{"fruit": "apple"}, {"veg": "carrot"}}
		Tassert(t, reflect.DeepEqual(all, want), "all %v", all)

		entries, err := s.Entries()
		Tassert(t, err == nil, "entries: %v", err)
		wantEntries := []Entry{{"fruit", "apple"}, {"veg", "carrot"}}
		Tassert(t, reflect.DeepEqual(entries, wantEntries), "entries %v", entries)

		err = s.Remove("fruit")
		Tassert(t, err == nil, "remove: %v", err)
		n, err = s.Size()
		Tassert(t, err == nil && n == 1, "size %d %v", n, err)
		ok, err := s.Has("fruit")
		Tassert(t, err == nil && !ok, "has %v %v", ok, err)
	})
}

// As a caller, I want my data to survive across Store values, since
// nothing is kept open between calls.
func TestPersistence(t *testing.T) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			s := newStore(t, Config{Engine: engine})
			setAll(t, s, "persist", "me")

			again := newStore(t, s.Config())
			value, err := again.Get("persist")
			Tassert(t, err == nil && value == "me", "get %q %v", value, err)
		})
	}
}

// As a caller, I want bad input rejected before anything is opened.
func TestBadInput(t *testing.T) {
	s := newStore(t, Config{})

	_, err := s.Set("", "v")
	Tassert(t, errors.Is(err, ErrEmptyKey), "empty key: %v", err)

	_, err = s.Set("k", "bad \xff value")
	Tassert(t, errors.Is(err, ErrDecode), "bad value: %v", err)

	_, err = s.Set("bad \xfe key", "v")
	Tassert(t, errors.Is(err, ErrDecode), "bad key: %v", err)

	var serr *Error
	Tassert(t, errors.As(err, &serr), "not an *Error: %T", err)
	Tassert(t, serr.Op == "set", "op %q", serr.Op)
	Tassert(t, serr.Name == s.Config().Name, "name %q", serr.Name)

	n, err := s.Size()
	Tassert(t, err == nil && n == 0, "size %d %v", n, err)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Op: "get", Name: "db", Kind: ErrOpen, Err: errors.New("timeout")}
	Tassert(t, err.Error() == "get db: sled: cannot open store: timeout", "%q", err.Error())
	Tassert(t, errors.Is(err, ErrOpen))
	Tassert(t, !errors.Is(err, ErrFlush))

	err = &Error{Op: "set", Name: "db", Kind: ErrEmptyKey}
	Tassert(t, err.Error() == "set db: sled: empty key", "%q", err.Error())
	Tassert(t, errors.Is(err, ErrEmptyKey))
}
