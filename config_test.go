package sled

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/stevegt/goadapt"
)

// writeConfig writes content to dir/base and returns dir/base.
func writeConfig(t *testing.T, base, content string) string {
	dir := filepath.Join(tmpDir, t.Name())
	err := os.MkdirAll(dir, 0755)
	Ck(err)
	fn := filepath.Join(dir, base)
	err = os.WriteFile(fn, []byte(content), 0644)
	Ck(err)
	return fn
}

func TestLoadConfigFormats(t *testing.T) {
	cases := []struct {
		file    string
		content string
	}{
		{"sled.toml", `
name = "data.db"
engine = "pebble"
codec = "zstd"
open_timeout = "250ms"
lock_file = true
serialize = true
log_level = "debug"
log_format = "json"
`},
		{"sled.yaml", `
name: data.db
engine: pebble
codec: zstd
open_timeout: 250ms
lock_file: true
serialize: true
log_level: debug
log_format: json
`},
		{"sled.yml", `
name: data.db
engine: pebble
codec: zstd
open_timeout: 250ms
lock_file: true
serialize: true
log_level: debug
log_format: json
`},
		{"sled.json", `{
  "name": "data.db",
  "engine": "pebble",
  "codec": "zstd",
  "open_timeout": "250ms",
  "lock_file": true,
  "serialize": true,
  "log_level": "debug",
  "log_format": "json"
}`},
	}
	want := Config{
		Name:        "data.db",
		Engine:      EnginePebble,
		Codec:       "zstd",
		OpenTimeout: 250 * time.Millisecond,
		LockFile:    true,
		Serialize:   true,
		LogLevel:    "debug",
		LogFormat:   "json",
	}
	for _, c := range cases {
		t.Run(c.file, func(t *testing.T) {
			fn := writeConfig(t, c.file, c.content)

			// by file name
			cfg, err := LoadConfig(fn)
			Tassert(t, err == nil, "load %s: %v", fn, err)
			Tassert(t, cfg == want, "got %+v", cfg)

			// by base name
			base := filepath.Join(filepath.Dir(fn), "sled")
			cfg, err = LoadConfig(base)
			Tassert(t, err == nil, "load %s: %v", base, err)
			Tassert(t, cfg == want, "got %+v", cfg)
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	fn := writeConfig(t, "sled.json", `{"name": "data.db"}`)
	cfg, err := LoadConfig(fn)
	Tassert(t, err == nil, "load: %v", err)
	Tassert(t, cfg.Engine == EngineBolt, "engine %q", cfg.Engine)
	Tassert(t, cfg.Codec == "none", "codec %q", cfg.Codec)
	Tassert(t, cfg.OpenTimeout == 0, "timeout %v", cfg.OpenTimeout)
}

// As a caller, I want toml to win when several formats exist.
func TestLoadConfigOrder(t *testing.T) {
	fn := writeConfig(t, "sled.json", `{"name": "from-json"}`)
	writeConfig(t, "sled.toml", `name = "from-toml"`)
	cfg, err := LoadConfig(filepath.Join(filepath.Dir(fn), "sled"))
	Tassert(t, err == nil, "load: %v", err)
	Tassert(t, cfg.Name == "from-toml", "name %q", cfg.Name)
}

// As a caller, I want every configuration problem reported as
// ErrConfig.
func TestLoadConfigErrors(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
	}{
		{"missing name", "sled.json", `{"engine": "bbolt"}`},
		{"empty name", "sled.toml", `name = ""`},
		{"bad engine", "sled.json", `{"name": "x", "engine": "leveldb"}`},
		{"bad codec", "sled.json", `{"name": "x", "codec": "gzip"}`},
		{"bad duration", "sled.json", `{"name": "x", "open_timeout": "soon"}`},
		{"negative duration", "sled.json", `{"name": "x", "open_timeout": "-1s"}`},
		{"bad log format", "sled.json", `{"name": "x", "log_format": "xml"}`},
		{"bad json", "sled.json", `{"name": `},
		{"bad yaml", "sled.yaml", "name: [unclosed"},
		{"bad toml", "sled.toml", `name = `},
		{"unknown format", "sled.ini", `name=x`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fn := writeConfig(t, c.file, c.content)
			_, err := LoadConfig(fn)
			Tassert(t, errors.Is(err, ErrConfig), "want ErrConfig, got %v", err)
		})
	}

	_, err := LoadConfig(filepath.Join(tmpDir, "no", "such", "sled"))
	Tassert(t, errors.Is(err, ErrConfig), "want ErrConfig, got %v", err)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{})
	Tassert(t, errors.Is(err, ErrConfig), "want ErrConfig, got %v", err)
	_, err = New(Config{Name: "x", Codec: "rot13"})
	Tassert(t, errors.Is(err, ErrConfig), "want ErrConfig, got %v", err)

	s, err := New(Config{Name: "x"})
	Tassert(t, err == nil, "new: %v", err)
	Tassert(t, s.Config().Engine == EngineBolt, "engine %q", s.Config().Engine)
}

// As a caller, I want the process-wide store resolved once from
// $SLED_CONFIG.
func TestDefault(t *testing.T) {
	name := filepath.Join(tmpDir, "default.db")
	fn := writeConfig(t, "sled.json", `{"name": "`+name+`"}`)
	t.Setenv("SLED_CONFIG", fn)

	s, err := Default()
	Tassert(t, err == nil, "default: %v", err)
	Tassert(t, s.Config().Name == name, "name %q", s.Config().Name)
	setAll(t, s, "k", "v")

	// later changes to the environment are not seen
	t.Setenv("SLED_CONFIG", filepath.Join(tmpDir, "elsewhere"))
	again, err := Default()
	Tassert(t, err == nil, "default: %v", err)
	Tassert(t, again == s, "resolved twice")
	value, err := again.Get("k")
	Tassert(t, err == nil && value == "v", "get %q %v", value, err)
}
