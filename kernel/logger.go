package kernel

import (
	"log"
	"os"
)

// Logger is the trace-line sink every component accepts. It is satisfied by
// *log.Logger, so callers needing only stdlib logging pass one in directly;
// components otherwise fall back to a package-level default writing to
// os.Stderr, matching the source's unconditional printf trace lines.
type Logger interface {
	Println(v ...interface{})
	Printf(format string, v ...interface{})
}

// NewLogger returns the default Logger for a component, prefixed so trace
// lines from different subsystems can be told apart in a combined boot log.
func NewLogger(component string) Logger {
	return log.New(os.Stderr, "["+component+"] ", 0)
}
