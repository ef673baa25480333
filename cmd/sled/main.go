package main

import (
	"os"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/sled"
)

// main simply calls the sled package's Cli() function
func main() {
	config := sled.NewCliConfig()
	rc, err := sled.Cli(os.Args[1:], config)
	if err != nil {
		Fpf(os.Stderr, "%s: %v\n", config.Name, err)
	}
	os.Exit(rc)
}
