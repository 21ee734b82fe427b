// Command tutor is a voice language tutor for the terminal.
//
// Usage:
//
//	tutor live            - real-time voice conversation
//	tutor chat [--listen] - turn-based conversation, typed or spoken
//	tutor speak <text>    - read text aloud
//	tutor serve           - health and metrics server only
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
