package sled

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/stevegt/envi"
	. "github.com/stevegt/goadapt"

	"github.com/stevegt/sled/log"
)

// cliArgs is the kong grammar of the sled command.
type cliArgs struct {
	Config  string `short:"c" help:"Config file, or base name to try .toml, .yaml, .yml and .json on.  Defaults to the SLED_CONFIG environment variable, or sled."`
	Verbose bool   `short:"v" help:"Show debug information on stderr."`

	Set struct {
		Key   string `arg:"" help:"Key to set."`
		Value string `arg:"" help:"Value to store."`
	} `cmd:"" help:"Store a value under a key and echo the value."`
	Get struct {
		Key string `arg:"" help:"Key to look up."`
	} `cmd:"" help:"Print the value stored under a key, or an empty line."`
	Has struct {
		Key string `arg:"" help:"Key to look up."`
	} `cmd:"" help:"Print true if a key exists, else false."`
	Remove struct {
		Key string `arg:"" help:"Key to remove."`
	} `cmd:"" help:"Remove a key."`
	Clear   struct{} `cmd:"" help:"Remove every entry."`
	Size    struct{} `cmd:"" help:"Print the number of entries."`
	First   struct{} `cmd:"" help:"Print the value with the smallest key."`
	Last    struct{} `cmd:"" help:"Print the value with the largest key."`
	Keys    struct{} `cmd:"" help:"Print every key, one per line, in order."`
	Values  struct{} `cmd:"" help:"Print every value, one per line, in key order."`
	All     struct{} `cmd:"" help:"Print every entry as a JSON array of one-key objects."`
	Random  struct{} `cmd:"" help:"Print a randomly chosen entry as a JSON object."`
	Version struct{} `cmd:"" help:"Show version of sled and of the store format."`
}

// CliConfig contains the configuration for sled's cli
type CliConfig struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Version is the version of the program
	Version string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewCliConfig returns a new CliConfig with default values populated
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "sled",
		Description: "A command-line tool for reading and writing a sled key/value store.",
		Version:     Version,
		Exit:        func(i int) { os.Exit(i) },
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Cli parses the given arguments and then executes the appropriate
// subcommand.  rc is 1 whenever err is set.
//
// We use this function instead of kong.Parse() so that we can pass in
// the arguments to parse, which lets the tests drive the subcommands
// directly.
func Cli(args []string, config *CliConfig) (rc int, err error) {
	defer func() {
		if err != nil {
			rc = 1
		}
	}()
	defer Return(&err)

	// kong would replace invalid bytes with U+FFFD and the damaged
	// text would be stored as if it were what the user typed
	for i, arg := range args {
		if !utf8.ValidString(arg) {
			err = &Error{Op: "cli", Name: config.Name, Kind: ErrDecode,
				Err: fmt.Errorf("argument %d %q is not valid UTF-8", i+1, arg)}
			return
		}
	}

	// capture goadapt stdio
	SetStdio(
		config.Stdin,
		config.Stdout,
		config.Stderr,
	)
	defer SetStdio(nil, nil, nil)

	var cli cliArgs
	options := []kong.Option{
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
		kong.Vars{
			"version": config.Version,
		},
	}

	parser, err := kong.New(&cli, options...)
	Ck(err)
	ctx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
		return 1, err
	}

	base := cli.Config
	if base == "" {
		base = envi.String("SLED_CONFIG", DefaultConfigBase)
	}
	cfg, err := LoadConfig(base)
	Ck(err)

	initLog(cli.Verbose, cfg, config.Stderr)

	cmd := ctx.Command()
	Debug("cmd: %s", cmd)
	log.CLI.Debug().Str("cmd", cmd).Str("config", base).Msg("running")

	store, err := New(cfg)
	Ck(err)
	defer store.Close()

	switch cmd {
	case "set <key> <value>":
		value, err := store.Set(cli.Set.Key, cli.Set.Value)
		Ck(err)
		Pl(value)
	case "get <key>":
		value, err := store.Get(cli.Get.Key)
		Ck(err)
		Pl(value)
	case "has <key>":
		ok, err := store.Has(cli.Has.Key)
		Ck(err)
		Pl(ok)
	case "remove <key>":
		err = store.Remove(cli.Remove.Key)
		Ck(err)
	case "clear":
		err = store.Clear()
		Ck(err)
	case "size":
		n, err := store.Size()
		Ck(err)
		Pl(n)
	case "first":
		value, err := store.First()
		Ck(err)
		Pl(value)
	case "last":
		value, err := store.Last()
		Ck(err)
		Pl(value)
	case "keys":
		keys, err := store.Keys()
		Ck(err)
		for _, key := range keys {
			Pl(key)
		}
	case "values":
		values, err := store.Values()
		Ck(err)
		for _, value := range values {
			Pl(value)
		}
	case "all":
		all, err := store.All()
		Ck(err)
		buf, err := json.Marshal(all)
		Ck(err)
		Pl(string(buf))
	case "random":
		e, found, err := store.Random()
		Ck(err)
		if !found {
			Pl("null")
			break
		}
		buf, err := json.Marshal(e)
		Ck(err)
		Pl(string(buf))
	case "version":
		Pf("sled version %s\n", config.Version)
		version, err := store.FormatVersion()
		Ck(err)
		if version != "" {
			Pf("store format version %s\n", version)
		}
	default:
		Fpf(config.Stderr, "Error: unrecognized command: %s\n", cmd)
		return 1, nil
	}
	return
}

// initLog turns on logging to stderr.  -v wins over the configured
// level; with neither, the library stays silent.
func initLog(verbose bool, cfg Config, out io.Writer) {
	// validated by LoadConfig
	typ, _ := log.ParseLoggerType(cfg.LogFormat)
	if verbose {
		os.Setenv("DEBUG", "1")
		log.Init(log.Options{LogLevel: zerolog.DebugLevel, Type: typ, Out: out})
		return
	}
	if cfg.LogLevel == "" {
		return
	}
	lvl, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		Fpf(out, "ignoring log_level %q: %v\n", cfg.LogLevel, err)
		return
	}
	log.Init(log.Options{LogLevel: lvl, Type: typ, Out: out})
}
