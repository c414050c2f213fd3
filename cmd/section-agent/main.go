// Package main provides the section-agent CLI, a generic monitoring agent
// fetching named sections from HTTP endpoints with an on-disk result cache.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
