package main

import (
	"os"

	"github.com/christoph-ui/lakecore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
