// Command atrium is a terminal client for the Atrium learning platform.
//
// Usage:
//
//	ATRIUM_EMAIL=me@example.edu ATRIUM_PASSWORD=... atrium ask "question" --file URL
//	atrium chat --file URL
//	atrium entitlement --wait
//
// Every flag can also be set through an ATRIUM_* environment variable,
// e.g. ATRIUM_BASE_URL for --base-url.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "atrium: %v\n", err)
		os.Exit(1)
	}
}
