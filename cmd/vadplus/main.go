// Package main provides the vadplus CLI.
//
// Usage:
//
//	vadplus [flags] <command> [args]
//
// Commands:
//
//	file   - Segment speech in a WAV file
//	mic    - Segment speech from the default microphone
//
// Each finished speech segment is written to output.dir as segment_NNN.wav.
package main

import (
	"fmt"
	"os"

	"github.com/cortexswarm/vadplus-go/cmd/vadplus/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
