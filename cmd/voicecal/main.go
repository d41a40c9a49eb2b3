// Package main provides the entry point for the voicecal CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/voicecal/voicecal-go/internal/cli"
)

func main() {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
