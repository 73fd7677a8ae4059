package main

import (
	"os"

	"github.com/soundprediction/sentinel/cmd/sentinel"
)

func main() {
	if err := sentinel.Execute(); err != nil {
		os.Exit(1)
	}
}
