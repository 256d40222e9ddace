package main

import (
	"os"

	"github.com/slnstrip/slnstrip/pkg/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := cli.ExecuteWithVersion(version); err != nil {
		os.Exit(1)
	}
}
