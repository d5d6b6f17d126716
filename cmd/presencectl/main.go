package main

import (
	"os"

	"presence/cmd/presencectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
