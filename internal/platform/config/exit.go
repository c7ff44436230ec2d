package config

import (
	"fmt"
	"io"
	"os"
)

// Exit statuses used by CLI entry points.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

var (
	exitStderr io.Writer = os.Stderr
	exitFunc             = os.Exit
)

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	ExitWithCode(ExitFailure, format, args...)
}

// ExitWithCode writes a formatted error message to stderr and exits with code.
func ExitWithCode(code int, format string, args ...any) {
	fmt.Fprintf(exitStderr, format+"\n", args...)
	exitFunc(code)
}
