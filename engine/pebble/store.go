package pebble

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// KVStore is an ordered map in a pebble directory.  pebble takes a
// LOCK file in the directory on Open, so a second KVStore on the
// same directory fails to open until the first is closed.
type KVStore struct {
	db     *pebble.DB
	closed atomic.Bool
}

// Open opens or creates the pebble store in dir.
func Open(dir string) (*KVStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{Logger: engineLogger{dir: dir}})
	if err != nil {
		return nil, fmt.Errorf(ErrInOpen, dir, err)
	}
	return &KVStore{db: db}, nil
}

func (p *KVStore) Get(key []byte) ([]byte, bool, error) {
	if p.closed.Load() {
		return nil, false, ErrClosed
	}
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, true, nil
}

func (p *KVStore) Put(key, value []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	return p.db.Set(key, value, pebble.Sync)
}

func (p *KVStore) Delete(key []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	return p.db.Delete(key, pebble.Sync)
}

func (p *KVStore) Has(key []byte) (bool, error) {
	_, found, err := p.Get(key)
	return found, err
}

// Len counts entries with a full scan; pebble keeps no exact count.
func (p *KVStore) Len() (int, error) {
	n := 0
	err := p.ForEach(func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

func (p *KVStore) First() (key, value []byte, found bool, err error) {
	return p.bound(func(it *pebble.Iterator) bool { return it.First() })
}

func (p *KVStore) Last() (key, value []byte, found bool, err error) {
	return p.bound(func(it *pebble.Iterator) bool { return it.Last() })
}

// bound positions a fresh iterator with seek and returns the entry it
// lands on.
func (p *KVStore) bound(seek func(*pebble.Iterator) bool) (key, value []byte, found bool, err error) {
	iter, err := p.NewIterator(nil, nil)
	if err != nil {
		return nil, nil, false, err
	}
	defer iter.Close()

	if !seek(iter.iter) {
		return nil, nil, false, iter.iter.Error()
	}
	value, err = iter.Value()
	if err != nil {
		return nil, nil, false, err
	}
	return iter.Key(), value, true, nil
}

// ForEach walks every entry in key order with a single iterator, so
// the walk sees one consistent snapshot.
func (p *KVStore) ForEach(fn func(key, value []byte) error) error {
	iter, err := p.NewIterator(nil, nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return err
		}
		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}
	return iter.iter.Error()
}

// Clear deletes every key in one synced batch.
func (p *KVStore) Clear() error {
	batch := p.NewBatch()
	defer batch.Close()

	err := p.ForEach(func(key, _ []byte) error {
		return batch.Delete(key)
	})
	if err != nil {
		return err
	}
	return batch.Commit()
}

// Flush flushes the memtable to an sstable.
func (p *KVStore) Flush() error {
	if p.closed.Load() {
		return ErrClosed
	}
	return p.db.Flush()
}

func (p *KVStore) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.db.Close()
}
