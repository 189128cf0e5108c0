package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/reliefhq/relief/cmd"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
