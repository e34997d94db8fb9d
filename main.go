// The main package for the parlcrawl executable.
package main

import (
	"os"

	"github.com/JakeFAU/parlcrawl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
