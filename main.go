package main

import (
	"os"

	"github.com/Chewie69006/beem-ai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
