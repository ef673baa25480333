package bbolt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/semver"
	bolt "go.etcd.io/bbolt"
)

// FormatVersion is the layout version written into the meta bucket
// of every store created by this package.
const FormatVersion = "1.0.0"

// Buckets:
// - entries: the user's key/value pairs, nothing else
// - meta: version -> FormatVersion, codec -> codec name
var (
	entriesBucket = []byte("entries")
	metaBucket    = []byte("meta")
	versionKey    = []byte("version")
	codecKey      = []byte("codec")
)

var (
	ErrCodecMismatch = errors.New("bbolt: store was written with a different codec")
	ErrNewerFormat   = errors.New("bbolt: store format is newer than this code")
)

// Options controls how a store file is opened.
type Options struct {
	// Timeout bounds the wait for the file lock.  Zero waits
	// forever.
	Timeout time.Duration
	// Codec is the name of the value codec the caller encodes
	// with.  It is recorded on first open and must match after.
	Codec string
}

// Db is a single-bucket ordered map.  This struct is an adapter for
// bolt.
type Db struct {
	bdb *bolt.DB
}

// flockRetryTimeout is how long bolt sleeps between attempts at the
// file lock.  bolt gives up once less than one retry interval of the
// timeout is left, so Open adds it back.
const flockRetryTimeout = 50 * time.Millisecond

// Open opens a database, creating it if it doesn't exist.  bolt
// holds an exclusive flock on the file until Close, so a second Open
// of the same path blocks, or fails with bolt.ErrTimeout after
// waiting at least opts.Timeout.
func Open(path string, opts Options) (db *Db, err error) {
	defer Return(&err)
	if opts.Codec == "" {
		opts.Codec = "none"
	}
	timeout := opts.Timeout
	if timeout > 0 {
		timeout += flockRetryTimeout
	}
	bdb, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	Ck(err)
	err = bdb.Update(func(tx *bolt.Tx) error {
		return setup(tx, opts.Codec)
	})
	if err != nil {
		bdb.Close()
	}
	Ck(err)
	db = &Db{bdb: bdb}
	return
}

// setup creates the buckets and checks the meta bucket against the
// caller's expectations.
func setup(tx *bolt.Tx, codec string) (err error) {
	defer Return(&err)
	_, err = tx.CreateBucketIfNotExists(entriesBucket)
	Ck(err, "failed to create bucket %s", entriesBucket)
	meta, err := tx.CreateBucketIfNotExists(metaBucket)
	Ck(err, "failed to create bucket %s", metaBucket)
	stored := meta.Get(versionKey)
	if stored == nil {
		// fresh store
		err = meta.Put(versionKey, []byte(FormatVersion))
		Ck(err)
		err = meta.Put(codecKey, []byte(codec))
		Ck(err)
		return
	}
	err = checkVersion(string(stored))
	Ck(err)
	if have := string(meta.Get(codecKey)); have != codec {
		err = fmt.Errorf("%w: store uses %q, opened with %q", ErrCodecMismatch, have, codec)
		Ck(err)
	}
	return
}

// checkVersion refuses stores written by a newer layout.
func checkVersion(stored string) (err error) {
	defer Return(&err)
	dbver, err := semver.Parse([]byte(stored))
	Ck(err, "bad store format version %q", stored)
	codever, err := semver.Parse([]byte(FormatVersion))
	Ck(err)
	if semver.Cmp(dbver, codever) > 0 {
		err = fmt.Errorf("%w: store is %s, code is %s", ErrNewerFormat, stored, FormatVersion)
		Ck(err)
	}
	return
}

// Meta returns the format version and codec name recorded in the
// store.
func (db *Db) Meta() (version, codec string, err error) {
	err = db.bdb.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return nil
		}
		version = string(meta.Get(versionKey))
		codec = string(meta.Get(codecKey))
		return nil
	})
	return
}

// view runs fn in a read-only transaction on the entries bucket.
func (db *Db) view(fn func(b *bolt.Bucket) error) error {
	return db.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		Assert(b != nil, "missing bucket %s", entriesBucket)
		return fn(b)
	})
}

// update runs fn in a read-write transaction on the entries bucket.
// The transaction commits, and bolt fsyncs, before update returns.
func (db *Db) update(fn func(b *bolt.Bucket) error) error {
	return db.bdb.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		Assert(b != nil, "missing bucket %s", entriesBucket)
		return fn(b)
	})
}

// copyBytes returns a copy of buf; bolt slices are only valid for
// the life of the transaction.
func copyBytes(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

// Get retrieves a record.  found is false if the key does not exist.
func (db *Db) Get(key []byte) (value []byte, found bool, err error) {
	err = db.view(func(b *bolt.Bucket) error {
		// seek instead of b.Get so that empty values are not
		// mistaken for missing keys
		k, v := b.Cursor().Seek(key)
		if k != nil && bytes.Equal(k, key) {
			value = copyBytes(v)
			found = true
		}
		return nil
	})
	return
}

// Put adds or replaces a record.
func (db *Db) Put(key, value []byte) (err error) {
	return db.update(func(b *bolt.Bucket) error {
		return b.Put(key, value)
	})
}

// Delete removes a record.  Missing keys are a no-op.
func (db *Db) Delete(key []byte) (err error) {
	return db.update(func(b *bolt.Bucket) error {
		return b.Delete(key)
	})
}

// Has reports whether key exists.
func (db *Db) Has(key []byte) (found bool, err error) {
	err = db.view(func(b *bolt.Bucket) error {
		k, _ := b.Cursor().Seek(key)
		found = k != nil && bytes.Equal(k, key)
		return nil
	})
	return
}

// Len returns the number of records.
func (db *Db) Len() (n int, err error) {
	err = db.view(func(b *bolt.Bucket) error {
		n = b.Stats().KeyN
		return nil
	})
	return
}

// First returns the record with the smallest key.
func (db *Db) First() (key, value []byte, found bool, err error) {
	err = db.view(func(b *bolt.Bucket) error {
		k, v := b.Cursor().First()
		if k != nil {
			key, value, found = copyBytes(k), copyBytes(v), true
		}
		return nil
	})
	return
}

// Last returns the record with the largest key.
func (db *Db) Last() (key, value []byte, found bool, err error) {
	err = db.view(func(b *bolt.Bucket) error {
		k, v := b.Cursor().Last()
		if k != nil {
			key, value, found = copyBytes(k), copyBytes(v), true
		}
		return nil
	})
	return
}

// ForEach calls fn for every record in key order, inside a single
// read transaction.
func (db *Db) ForEach(fn func(key, value []byte) error) (err error) {
	return db.view(func(b *bolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			return fn(copyBytes(k), copyBytes(v))
		})
	})
}

// Clear removes every record by dropping and recreating the entries
// bucket.  The meta bucket is kept.
func (db *Db) Clear() (err error) {
	return db.bdb.Update(func(tx *bolt.Tx) (err error) {
		defer Return(&err)
		err = tx.DeleteBucket(entriesBucket)
		if errors.Is(err, bolt.ErrBucketNotFound) {
			err = nil
		}
		Ck(err)
		_, err = tx.CreateBucket(entriesBucket)
		Ck(err)
		return
	})
}

// Flush fsyncs the database file.
func (db *Db) Flush() error {
	return db.bdb.Sync()
}

// Close closes the db and releases its file lock.
func (db *Db) Close() error {
	return db.bdb.Close()
}
