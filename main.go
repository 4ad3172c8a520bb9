package main

import (
	"os"

	"hyperbench/cmd"
)

func main() {
	// On failure cobra prints the error, so only the exit status is left.
	if cmd.Execute() != nil {
		os.Exit(1)
	}
}
