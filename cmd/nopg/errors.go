package main

import (
	"fmt"
	"os"

	"github.com/norjs/nopg/internal/cli"
)

// printError renders an error to stderr using the coded error formatter.
func printError(err error) {
	fmt.Fprint(os.Stderr, cli.FormatError(err))
}
