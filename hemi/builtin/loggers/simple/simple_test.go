// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package simple

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/hexinfra/spartan/hemi"
)

func TestSimpleLogger(t *testing.T) {
	target := filepath.Join(t.TempDir(), "spartan.log")
	l := newSimpleLogger(&LogConfig{Target: target, BufSize: 16}, time.Now)
	if err := l.open(); err != nil {
		t.Fatal(err)
	}
	go l.saver()
	l.Logf("hello %s", "world")
	l.Logf("a line longer than the sixteen byte buffer\n")
	l.Close()

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), data)
	}
	if !strings.HasSuffix(lines[0], "] hello world") {
		t.Errorf("line 0: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "] a line longer than the sixteen byte buffer") {
		t.Errorf("line 1: %q", lines[1])
	}
}

func TestSimpleLoggerRotate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "spartan.log")
	clock := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	l := newSimpleLogger(&LogConfig{Target: target, Rotate: "hour", BufSize: 1024}, func() time.Time { return clock })
	tests := []struct {
		at   time.Time
		file string
	}{
		{time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC), "spartan.log.2024-03-01.23"},
		{time.Date(2024, 3, 2, 0, 1, 0, 0, time.UTC), "spartan.log.2024-03-02.00"},
	}
	for i, test := range tests {
		if got := filepath.Base(l.pathAt(test.at)); got != test.file {
			t.Errorf("#%d: pathAt=%s want=%s", i, got, test.file)
		}
	}
	if err := l.open(); err != nil {
		t.Fatal(err)
	}
	l.write("first\n")
	l.clear()
	clock = tests[1].at
	l.write("second\n")
	l.clear()
	l.file.Close()

	for i, want := range []string{"first\n", "second\n"} {
		data, err := os.ReadFile(filepath.Join(dir, tests[i].file))
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if string(data) != want {
			t.Errorf("#%d: got %q want %q", i, data, want)
		}
	}
}
