// Package cmd contains the kong command tree for the strobe binary.
package cmd

// LogConfig holds the logging flags shared by all commands.
type LogConfig struct {
	Level string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"STROBE_LOG_LEVEL"`
	File  string `help:"Write logs to this file instead of the console" env:"STROBE_LOG_FILE"`
}

// CLI is the root command tree parsed by kong.
type CLI struct {
	Log       LogConfig     `embed:"" prefix:"log."`
	Config    string        `help:"Path to a configuration file" type:"path"`
	Run       Run           `cmd:"" help:"Run the keyboard controller against simulated hardware"`
	ConfigCmd ConfigCommand `cmd:"" name:"config" help:"Configuration utilities"`
}
