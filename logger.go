package strata

import "github.com/hashicorp/go-hclog"

// logger is the package logger. Runtime internals log recoverable oddities
// (dropped moves, leaked indices, missing columns) at Debug and keep quiet
// otherwise.
var logger = hclog.New(&hclog.LoggerOptions{
	Name:  "strata",
	Level: hclog.Warn,
})

// SetLogger replaces the package logger. Pass hclog.NewNullLogger() to
// silence the runtime entirely.
func SetLogger(l hclog.Logger) {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	logger = l
}

// Logger returns the current package logger.
func Logger() hclog.Logger {
	return logger
}
