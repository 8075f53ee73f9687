package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Pick up a local .env in development; real environment variables win.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
