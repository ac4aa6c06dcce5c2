// Package logger provides the process-wide feeder log. Entries go to stdout
// and, once the remote link is up, warnings are mirrored to the broker.
package logger

import (
	"sync"
)

// Accepted values for the log.level setting.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	root     *Logger
	rootOnce sync.Once
)

// Get returns the feeder's shared logger, building it on first use. The
// level only matters on that first call; config reloads go through SetLevel.
func Get(level string) *Logger {
	rootOnce.Do(func() {
		root = newZapLogger(level)
	})
	return root
}

// IsLevel reports whether s names a level this package understands. An empty
// string is accepted and means debug.
func IsLevel(s string) bool {
	switch s {
	case "", DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return true
	}
	return false
}
