package main

import (
	"os"

	"github.com/farreladriann/slc-backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
