package main

import (
	"os"

	"github.com/newhook/testrun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
