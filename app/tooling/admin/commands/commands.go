// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"github.com/fatih/color"
)

// Set of printers used to colour the command output.
var (
	header = color.New(color.FgCyan, color.Bold)
	info   = color.New(color.FgGreen)
	warn   = color.New(color.FgYellow)
	fail   = color.New(color.FgRed, color.Bold)
)
