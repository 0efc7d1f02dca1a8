package server

import (
	golog "github.com/golang/glog"
)

// defaultLogFn backs Config.Log when the embedder doesn't supply one. It
// routes through github.com/golang/glog, the leveled logger underneath the
// appscode/go/log/golog wrapper that cmd/server.go initializes with
// logs.InitLogs()/logs.FlushLogs().
// The daemon still owns the sink (flags, file rotation, verbosity); this
// just gives the library a sane default when used standalone.
func defaultLogFn(level LogLevel, format string, args ...interface{}) {
	switch level {
	case LogDebug:
		golog.V(3).Infof(format, args...)
	case LogInfo:
		golog.V(1).Infof(format, args...)
	case LogWarn:
		golog.Warningf(format, args...)
	case LogError:
		golog.Errorf(format, args...)
	default:
		golog.Infof(format, args...)
	}
}
