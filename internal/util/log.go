// Package util provides logging and tracing primitives shared by every
// logscope package, in the style famarks-loki wires its own util.Logger.
package util

import (
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Logger is the package-level logfmt logger every component logs through.
var Logger log.Logger

func init() {
	Logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	Logger = log.With(Logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	Logger = level.NewFilter(Logger, level.AllowInfo())
}

// SetLevel narrows or widens the logger's minimum level, e.g. "debug" for -v.
func SetLevel(lvl string) {
	base := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	base = log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	switch lvl {
	case "debug":
		Logger = level.NewFilter(base, level.AllowDebug())
	case "warn":
		Logger = level.NewFilter(base, level.AllowWarn())
	case "error":
		Logger = level.NewFilter(base, level.AllowError())
	default:
		Logger = level.NewFilter(base, level.AllowInfo())
	}
}
