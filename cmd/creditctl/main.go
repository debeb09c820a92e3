package main

import (
	"os"

	"github.com/listingkit/credits-api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
