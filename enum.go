package sled

// Entry is one key/value pair.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Keys returns every key in ascending byte order.  An empty store
// yields an empty, non-nil slice.
func (s *Store) Keys() (keys []string, err error) {
	keys = []string{}
	err = s.withSession("keys", func(ss *session) error {
		return ss.forEach(func(k, _ []byte) error {
			key, err := ss.key(k)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Values returns every value, ordered by key.
func (s *Store) Values() (values []string, err error) {
	values = []string{}
	err = s.withSession("values", func(ss *session) error {
		return ss.forEach(func(_, v []byte) error {
			value, err := ss.value(v)
			if err != nil {
				return err
			}
			values = append(values, value)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Entries returns every entry, ordered by key.
func (s *Store) Entries() (entries []Entry, err error) {
	entries = []Entry{}
	err = s.withSession("entries", func(ss *session) error {
		return ss.forEach(func(k, v []byte) error {
			e, err := ss.entry(k, v)
			if err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// All returns every entry as a single-key map, ordered by key.  This
// is the shape existing callers of the store expect; new code should
// prefer Entries.
func (s *Store) All() (all []map[string]string, err error) {
	all = []map[string]string{}
	err = s.withSession("all", func(ss *session) error {
		return ss.forEach(func(k, v []byte) error {
			e, err := ss.entry(k, v)
			if err != nil {
				return err
			}
			all = append(all, map[string]string{e.Key: e.Value})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (ss *session) entry(k, v []byte) (e Entry, err error) {
	e.Key, err = ss.key(k)
	if err != nil {
		return
	}
	e.Value, err = ss.value(v)
	return
}
