// Package engine defines the contract between sled and the durable
// ordered map libraries it stores entries in.  Keys and values are
// opaque byte slices here; text decoding happens above this layer.
package engine

// Engine is one open handle onto a store location.  Implementations
// must keep keys in byte-lexicographic order, must enforce
// single-writer access to the location while the handle is open,
// and must return copies, never slices that alias engine memory.
type Engine interface {
	// Get returns the value stored under key.  found is false if
	// the key does not exist.
	Get(key []byte) (value []byte, found bool, err error)
	// Put adds or replaces the value stored under key.
	Put(key, value []byte) error
	// Delete removes key.  Deleting a missing key is not an error.
	Delete(key []byte) error
	// Has reports whether key exists.
	Has(key []byte) (bool, error)
	// Len returns the number of entries.
	Len() (int, error)
	// First returns the entry with the smallest key.
	First() (key, value []byte, found bool, err error)
	// Last returns the entry with the largest key.
	Last() (key, value []byte, found bool, err error)
	// ForEach calls fn for every entry in ascending key order,
	// stopping at the first error fn returns.
	ForEach(fn func(key, value []byte) error) error
	// Clear removes every entry but keeps the store location.
	Clear() error
	// Flush forces everything written so far onto stable storage.
	Flush() error
	// Close releases the handle and its lock.
	Close() error
}
