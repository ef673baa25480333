package sled

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/naoina/toml"
	"github.com/stevegt/envi"
	"gopkg.in/yaml.v3"

	"github.com/stevegt/sled/codec"
	"github.com/stevegt/sled/log"
)

// Engines
const (
	EngineBolt   = "bbolt"
	EnginePebble = "pebble"
)

// DefaultConfigBase is the config file base name used by Default when
// $SLED_CONFIG is not set.
const DefaultConfigBase = "sled"

// Config identifies a store and says how to open it.
type Config struct {
	// Name is the filesystem location of the store: a file for
	// bbolt, a directory for pebble.
	Name string
	// Engine is EngineBolt (the default) or EnginePebble.
	Engine string
	// Codec is the value codec name, see package codec.
	Codec string
	// OpenTimeout bounds the wait for a lock held by another
	// session.  Zero means wait forever where the engine waits at
	// all; pebble never waits.  bbolt polls its lock every 50ms, so
	// a failed open waits at least OpenTimeout and at most one poll
	// longer.
	OpenTimeout time.Duration
	// LockFile makes every session also hold an exclusive lock on
	// Name + ".lock" for its whole lifetime.
	LockFile bool
	// Serialize runs every session of a Store on one goroutine.
	Serialize bool
	// LogLevel is a zerolog level name.  Only the CLI applies it.
	LogLevel string
	// LogFormat is "console" (the default) or "json".
	LogFormat string
}

// configFile is the on-disk layout shared by every supported format.
type configFile struct {
	Name        string `toml:"name" yaml:"name" json:"name"`
	Engine      string `toml:"engine" yaml:"engine" json:"engine"`
	Codec       string `toml:"codec" yaml:"codec" json:"codec"`
	OpenTimeout string `toml:"open_timeout" yaml:"open_timeout" json:"open_timeout"`
	LockFile    bool   `toml:"lock_file" yaml:"lock_file" json:"lock_file"`
	Serialize   bool   `toml:"serialize" yaml:"serialize" json:"serialize"`
	LogLevel    string `toml:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat   string `toml:"log_format" yaml:"log_format" json:"log_format"`
}

// configExts are tried in order after the bare base name.
var configExts = []string{".toml", ".yaml", ".yml", ".json"}

func configError(base string, err error) error {
	return &Error{Op: "config", Name: base, Kind: ErrConfig, Err: err}
}

// LoadConfig reads the store configuration.  If base names a file,
// that file is read; otherwise base+".toml", ".yaml", ".yml" and
// ".json" are tried in that order.  Any failure is an ErrConfig, and
// there is no fallback: a store without a configured name cannot be
// opened.
func LoadConfig(base string) (cfg Config, err error) {
	path, err := findConfig(base)
	if err != nil {
		return cfg, configError(base, err)
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, configError(base, err)
	}

	var raw configFile
	switch filepath.Ext(path) {
	case ".toml":
		err = toml.Unmarshal(buf, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buf, &raw)
	case ".json":
		err = json.Unmarshal(buf, &raw)
	default:
		err = fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return cfg, configError(base, fmt.Errorf("%s: %w", path, err))
	}

	cfg = Config{
		Name:      raw.Name,
		Engine:    raw.Engine,
		Codec:     raw.Codec,
		LockFile:  raw.LockFile,
		Serialize: raw.Serialize,
		LogLevel:  raw.LogLevel,
		LogFormat: raw.LogFormat,
	}
	if raw.OpenTimeout != "" {
		cfg.OpenTimeout, err = time.ParseDuration(raw.OpenTimeout)
		if err != nil {
			return cfg, configError(base, fmt.Errorf("%s: open_timeout: %w", path, err))
		}
	}
	err = cfg.validate()
	if err != nil {
		return cfg, configError(base, fmt.Errorf("%s: %w", path, err))
	}
	log.Config.Debug().Str("path", path).Str("name", cfg.Name).Str("engine", cfg.Engine).Msg("loaded configuration")
	return cfg, nil
}

func findConfig(base string) (path string, err error) {
	if fi, err := os.Stat(base); err == nil && !fi.IsDir() {
		return base, nil
	}
	for _, ext := range configExts {
		path = base + ext
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no configuration file %s{%s}", base, strings.Join(configExts, ","))
}

// validate fills in defaults and rejects what cannot be opened.
func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("missing store name")
	}
	switch c.Engine {
	case "":
		c.Engine = EngineBolt
	case EngineBolt, EnginePebble:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.Codec == "" {
		c.Codec = codec.None
	}
	if _, err := codec.Lookup(c.Codec); err != nil {
		return err
	}
	if _, err := log.ParseLoggerType(c.LogFormat); err != nil {
		return err
	}
	if c.OpenTimeout < 0 {
		return fmt.Errorf("negative open timeout %s", c.OpenTimeout)
	}
	return nil
}

var defaultStore struct {
	once  sync.Once
	store *Store
	err   error
}

// Default returns the process-wide Store, resolved on first use from
// the config file named by $SLED_CONFIG (default "sled").  The result,
// including a failure, is kept for the life of the process.
func Default() (*Store, error) {
	defaultStore.once.Do(func() {
		base := envi.String("SLED_CONFIG", DefaultConfigBase)
		cfg, err := LoadConfig(base)
		if err != nil {
			defaultStore.err = err
			return
		}
		defaultStore.store, defaultStore.err = New(cfg)
	})
	return defaultStore.store, defaultStore.err
}
