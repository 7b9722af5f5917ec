package main

import (
	"os"

	"github.com/hugo-lorenzo-mato/crashguard/cmd/crashguard-handler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
