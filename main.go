package main

import (
	"os"

	"github.com/FranLegon/mailbox-usage-report/cmd"
	"github.com/FranLegon/mailbox-usage-report/internal/logger"
)

// main runs the root command. Argument parsing and flag handling live in the
// cmd package.
func main() {
	if err := cmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
