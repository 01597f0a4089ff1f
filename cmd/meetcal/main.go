// Command meetcal renders meeting calendars and drives meeting lifecycle
// transitions from the command line or over HTTP.
package main

import (
	"os"

	appLog "meetcal/internal/log"
)

// Set with -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer appLog.Sync()
	if err := newRootCommand().Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}
