// Package main provides the slate CLI entry point.
package main

import (
	"os"

	"github.com/slatedata/slate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
