package main

import (
	"io"

	"github.com/goliatone/go-acumatica/core"
	glog "github.com/goliatone/go-logger/glog"
)

const loggerName = "acumatica-webhook"

// newLogger returns a JSON logger writing to w at the given level
// (trace, debug, info, warn, error).
func newLogger(w io.Writer, level string) core.Logger {
	return glog.NewLogger(
		glog.WithName(loggerName),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
		glog.WithWriter(w),
	)
}
