package main

import (
	"os"

	"keeprun/cmd/keeprun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
