package main

import (
	"os"

	"github.com/scrypster/resonance/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
