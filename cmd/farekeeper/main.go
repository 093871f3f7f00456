package main

import (
	"os"

	"github.com/solatis/farekeeper/cmd/farekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
