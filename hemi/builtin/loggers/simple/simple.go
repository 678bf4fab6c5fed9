// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// A simple logger. Logs are buffered by a saver goroutine and written to a file that may rotate by day or hour.

package simple

import (
	"fmt"
	"os"
	"time"

	. "github.com/hexinfra/spartan/hemi"
)

func init() {
	RegisterLogger("simple", func(logConfig *LogConfig) Logger {
		l := newSimpleLogger(logConfig, time.Now)
		if err := l.open(); err != nil {
			EnvExitln(err.Error())
		}
		go l.saver()
		return l
	})
}

const simpleTimeFormat = "[2006-01-02 15:04:05.000] "

// simpleLogger implements Logger.
type simpleLogger struct {
	config *LogConfig
	now    func() time.Time
	file   *os.File
	path   string // current file path, with rotation suffix
	queue  chan string
	done   chan struct{}
	buffer []byte
	size   int
	used   int
}

func newSimpleLogger(logConfig *LogConfig, now func() time.Time) *simpleLogger {
	l := new(simpleLogger)
	l.config = logConfig
	l.now = now
	l.queue = make(chan string)
	l.done = make(chan struct{})
	bufSize := int(logConfig.BufSize)
	if bufSize <= 0 {
		bufSize = 4096
	}
	l.buffer = make([]byte, bufSize)
	l.size = len(l.buffer)
	l.used = 0
	return l
}

// pathAt returns the file path for logs written at t.
func (l *simpleLogger) pathAt(t time.Time) string {
	switch l.config.Rotate {
	case "day":
		return l.config.Target + "." + t.Format("2006-01-02")
	case "hour":
		return l.config.Target + "." + t.Format("2006-01-02.15")
	default:
		return l.config.Target
	}
}

func (l *simpleLogger) open() error {
	if l.config.Target == "" {
		return fmt.Errorf("simple logger: empty log target")
	}
	path := l.pathAt(l.now())
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	l.file = file
	l.path = path
	return nil
}

func (l *simpleLogger) Logf(f string, v ...any) {
	s := l.now().Format(simpleTimeFormat) + fmt.Sprintf(f, v...)
	if s[len(s)-1] != '\n' {
		s += "\n"
	}
	l.queue <- s
}
func (l *simpleLogger) Close() {
	l.queue <- ""
	<-l.done
}

func (l *simpleLogger) saver() { // runner
	for {
		s := <-l.queue
		if s == "" {
			goto over
		}
		l.write(s)
	more:
		for {
			select {
			case s = <-l.queue:
				if s == "" {
					goto over
				}
				l.write(s)
			default:
				l.clear()
				break more
			}
		}
	}
over:
	l.clear()
	l.file.Close()
	close(l.done)
}
func (l *simpleLogger) write(s string) {
	n := len(s)
	if n >= l.size {
		l.clear()
		l.flush([]byte(s))
		return
	}
	w := copy(l.buffer[l.used:], s)
	l.used += w
	if l.used == l.size {
		l.clear()
		if n -= w; n > 0 {
			copy(l.buffer, s[w:])
			l.used = n
		}
	}
}
func (l *simpleLogger) clear() {
	if l.used > 0 {
		l.flush(l.buffer[:l.used])
		l.used = 0
	}
}
func (l *simpleLogger) flush(logs []byte) {
	if path := l.pathAt(l.now()); path != l.path { // rotate
		if file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644); err == nil {
			l.file.Close()
			l.file = file
			l.path = path
		}
	}
	l.file.Write(logs)
}
