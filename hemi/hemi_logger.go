// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Loggers log events.

package hemi

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger
type Logger interface {
	Logf(f string, v ...any)
	Close()
}

// LogConfig
type LogConfig struct {
	Target  string // "/path/to/file.log", ...
	Rotate  string // "day", "hour", or "" for no rotation
	BufSize int32  // size of log buffer
}

var (
	loggersLock    sync.RWMutex
	loggerCreators = make(map[string]func(config *LogConfig) Logger) // indexed by loggerSign
)

func RegisterLogger(loggerSign string, create func(config *LogConfig) Logger) {
	loggersLock.Lock()
	defer loggersLock.Unlock()

	if _, ok := loggerCreators[loggerSign]; ok {
		BugExitln("logger conflicts")
	}
	loggerCreators[loggerSign] = create
}
func loggerRegistered(loggerSign string) bool {
	loggersLock.RLock()
	_, ok := loggerCreators[loggerSign]
	loggersLock.RUnlock()
	return ok
}
func createLogger(loggerSign string, config *LogConfig) Logger {
	loggersLock.RLock()
	defer loggersLock.RUnlock()

	if create := loggerCreators[loggerSign]; create != nil {
		return create(config)
	}
	return nil
}

func init() {
	RegisterLogger("noop", func(config *LogConfig) Logger {
		return noopLogger{}
	})
	RegisterLogger("console", func(config *LogConfig) Logger {
		l := new(consoleLogger)
		l.output = os.Stderr
		return l
	})
}

// noopLogger
type noopLogger struct{}

func (noopLogger) Logf(f string, v ...any) {}
func (noopLogger) Close()                  {}

// consoleLogger writes timestamped lines to stderr.
type consoleLogger struct {
	mutex  sync.Mutex
	output io.Writer
}

const consoleTimeFormat = "[2006-01-02 15:04:05.000] "

func (l *consoleLogger) Logf(f string, v ...any) {
	line := time.Now().Format(consoleTimeFormat) + fmt.Sprintf(f, v...)
	if n := len(line); n == 0 || line[n-1] != '\n' {
		line += "\n"
	}
	l.mutex.Lock()
	io.WriteString(l.output, line)
	l.mutex.Unlock()
}
func (l *consoleLogger) Close() {}
