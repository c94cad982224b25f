// Command chartchat is the entry point for the rated-album chat assistant.
// It provides a CLI interface (via Cobra) and an optional HTTP server for
// interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/54b3r/chartchat-go/cmd/chartchat/commands"
)

func main() {
	// A local .env is a convenience for development; absence is not an error.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
