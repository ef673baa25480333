package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/stevegt/sled/log"
)

// engineLogger sends pebble's own messages to the engine component
// logger instead of the standard library logger.  log.Engine is read
// on every call so that a later log.Init takes effect.
type engineLogger struct {
	dir string
}

var _ pebble.Logger = engineLogger{}

func (l engineLogger) Infof(format string, args ...interface{}) {
	log.Engine.Debug().Str("dir", l.dir).Msgf(format, args...)
}

func (l engineLogger) Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Engine.Error().Str("dir", l.dir).Msg(msg)
	panic(msg)
}
