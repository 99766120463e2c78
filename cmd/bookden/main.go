// Command bookden is the terminal client for the BookDen platform: sign in
// once, then browse books, reviews, and your reading list from the shell.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
