// Package logging holds klog verbosity levels shared by the server packages.
package logging

import (
	"strings"

	"k8s.io/klog/v2"
)

const (
	ERROR   = 1
	WARNING = 2
	INFO    = 3
	DEBUG   = 4
	TRACE   = 5
)

// Verbosity maps a config log level to a klog -v value.
func Verbosity(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return ERROR
	case "warn", "warning":
		return WARNING
	case "debug":
		return DEBUG
	case "trace":
		return TRACE
	default:
		return INFO
	}
}

// Named returns the background logger tagged with a component name.
func Named(component string) klog.Logger {
	return klog.Background().WithName(component)
}
