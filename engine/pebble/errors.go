package pebble

import "errors"

var (
	ErrClosed          = errors.New("pebble: store is closed")
	ErrBatchDone       = errors.New("pebble: batch already committed or closed")
	ErrIteratorInvalid = errors.New("pebble: iterator is not positioned")
)

const (
	ErrInOpen             = "pebble: open %s: %w"
	ErrInIteratorCreation = "pebble: create iterator: %w"
	ErrIteratorValue      = "pebble: read iterator value: %w"
)
