// Package main is the entry point for the idsync admin CLI.
package main

import (
	"os"

	cli "idsync/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
