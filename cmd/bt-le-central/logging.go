package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blecentral/pkg/config"
)

// configureLogger creates a logger with the appropriate log level based on flags.
// --log-level takes precedence over --verbose, which takes precedence over the
// config file. Returns an error if the log level is invalid.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	effective := *cfg

	// Check --log-level first (takes precedence)
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		effective.LogLevel = level
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		effective.LogLevel = "debug"
	}

	return effective.NewLogger()
}
