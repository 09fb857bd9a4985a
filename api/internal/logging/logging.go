package logging

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// New builds the process logger: logfmt on stderr, filtered by levelName.
func New(levelName, svc string) log.Logger {
	return NewWithWriter(os.Stderr, levelName, svc)
}

func NewWithWriter(w io.Writer, levelName, svc string) log.Logger {
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(w)
		logger = log.NewSyncLogger(logger)
		logger = level.NewFilter(logger, levelOption(levelName))
		logger = log.With(logger,
			"svc", svc,
			"ts", log.DefaultTimestampUTC,
			"caller", log.DefaultCaller,
		)
	}
	return logger
}

func levelOption(name string) level.Option {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none", "off":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}

// OrNop returns l, or a logger that drops everything when l is nil.
func OrNop(l log.Logger) log.Logger {
	if l == nil {
		return log.NewNopLogger()
	}
	return l
}
