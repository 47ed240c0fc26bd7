// Command fichai runs the staff attendance alerting service.
package main

import (
	"fmt"
	"os"

	"github.com/edupresencia/fichai/internal/mcpserver"
)

// Build metadata, set with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	mcpserver.Version = version
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
