// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package hemi

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordLogger keeps logged lines in memory.
type recordLogger struct {
	mutex sync.Mutex
	lines []string
}

func (l *recordLogger) Logf(f string, v ...any) {
	l.mutex.Lock()
	l.lines = append(l.lines, fmt.Sprintf(f, v...))
	l.mutex.Unlock()
}
func (l *recordLogger) Close() {}

func (l *recordLogger) contains(s string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// pipeExchange serves request over an in-memory pipe and returns what the client received.
func pipeExchange(t *testing.T, settings *Settings, logger Logger, request string) string {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	reply := make(chan string, 1)
	go func() {
		clientSide.Write([]byte(request))
		data, _ := io.ReadAll(clientSide)
		clientSide.Close()
		reply <- string(data)
	}()
	conn := getSpartanConn(1, nil, serverSide)
	serveSpartan(context.Background(), conn, settings, logger)
	conn.closeConn()
	putSpartanConn(conn)
	select {
	case got := <-reply:
		return got
	case <-time.After(5 * time.Second):
		t.Fatalf("no reply for %q", request)
		return ""
	}
}

func TestServeSpartan(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"h/index.gmi": "# Home\r\n",
		"h/docs/":     "",
	})
	writeProgram(t, filepath.Join(root, "h", "echo"), "printf '2 text/plain\\r\\n'\n/bin/cat\n")
	settings := testSettings(root)
	settings.MaxUploadSize = 8

	tests := []struct {
		request string
		reply   string
	}{
		{"h /index.gmi 0\r\n", "2 text/gemini\r\n# Home\r\n"},
		{"h / 0\r\n", "2 text/gemini\r\n# Home\r\n"},
		{"h /docs 0\r\n", "3 /docs/\r\n"},
		{"h /echo 5\r\nhello", "2 text/plain\r\nhello"},
		{"h /echo 8\r\n12345678", "2 text/plain\r\n12345678"},
		{"h /echo 9\r\n123456789", "4 Upload too big\r\n"},
		{"h /index.gmi 3\r\nabc", "4 Not allowed\r\n"},
		{"h /missing.gmi 0\r\n", "5 Internal server error\r\n"},
		{"host.com /missing.gmi 0\r\n", "5 Host not served\r\n"},
		{"\r\n", "4 Empty request\r\n"},
		{"h /index.gmi\r\n", "4 Can't parse request string\r\n"},
		{"h index.gmi 0\r\n", "4 Can't parse request string: relative locator\r\n"},
		{"h /%zz 0\r\n", "4 Can't parse request string: invalid URL escape \"%zz\"\r\n"},
		{"h /index.gmi -1\r\n", "4 Can't parse request string\r\n"},
	}
	for i, test := range tests {
		if got := pipeExchange(t, settings, noopLogger{}, test.request); got != test.reply {
			t.Errorf("#%d: request=%q reply=%q want=%q", i, test.request, got, test.reply)
		}
	}
}

func TestServeSpartanExposeErrors(t *testing.T) {
	settings := testSettings(t.TempDir())
	writeTree(t, settings.ServerRoot, map[string]string{"any/": ""})
	settings.ExposeErrors = true
	got := pipeExchange(t, settings, noopLogger{}, "h /missing.gmi 0\r\n")
	if !strings.HasPrefix(got, "5 Io error: ") {
		t.Errorf("reply=%q", got)
	}
}

func TestServeSpartanLogs(t *testing.T) {
	settings := testSettings(t.TempDir())
	writeTree(t, settings.ServerRoot, map[string]string{"any/a.gmi": "a"})
	logger := new(recordLogger)

	pipeExchange(t, settings, logger, "h /a.gmi 0\r\n")
	if !logger.contains("host=any locator=/a.gmi dataLen=0 status=2") {
		t.Errorf("served request is not logged: %v", logger.lines)
	}
	pipeExchange(t, settings, logger, "h /missing.gmi 0\r\n")
	if !logger.contains("Io error") {
		t.Errorf("io error is not logged: %v", logger.lines)
	}
	pipeExchange(t, settings, logger, strings.Repeat("x", spartanMaxLineSize+100)+"\r\n")
	if !logger.contains("read failed") {
		t.Errorf("read failure is not logged: %v", logger.lines)
	}
}

func TestServeSpartanLineTooLong(t *testing.T) {
	settings := testSettings(t.TempDir())
	if got := pipeExchange(t, settings, noopLogger{}, strings.Repeat("x", spartanMaxLineSize+100)+"\r\n"); got != "" {
		t.Errorf("reply=%q want nothing", got)
	}
}

// startTestServer configures a spartanServer on a random local port with one gate.
func startTestServer(t *testing.T, root string, props string) (*spartanServer, *spartanGate) {
	t.Helper()
	stage, err := StageFromText(`
stage {
    spartanServer "test" {
        .address    = "127.0.0.1:0"
        .serverRoot = "` + root + `"
        .numGates   = 1
        .logger     = "noop"
        ` + props + `
    }
}
`)
	if err != nil {
		t.Fatal(err)
	}
	if err := stage.Check(); err != nil {
		t.Fatal(err)
	}
	server := stage.Server("test").(*spartanServer)
	gate := new(spartanGate)
	gate.init(0, server)
	if err := gate.Open(); err != nil {
		t.Fatal(err)
	}
	server.AddGate(gate)
	server.IncSub() // gate
	go gate.serve()
	t.Cleanup(func() {
		server.OnShutdown()
		server.WaitSubs()
	})
	return server, gate
}

// dialExchange sends request, half-closes if asked, and reads the reply until the server closes.
func dialExchange(address string, request string, halfClose bool) (string, error) {
	netConn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return "", err
	}
	defer netConn.Close()
	netConn.SetDeadline(time.Now().Add(10 * time.Second))
	if _, err := netConn.Write([]byte(request)); err != nil {
		return "", err
	}
	if halfClose {
		netConn.(*net.TCPConn).CloseWrite()
	}
	reply, err := io.ReadAll(netConn)
	return string(reply), err
}

func tcpExchange(t *testing.T, address string, request string, halfClose bool) string {
	t.Helper()
	reply, err := dialExchange(address, request, halfClose)
	if err != nil {
		t.Fatal(err)
	}
	return reply
}

func TestSpartanGate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"example.org/index.gmi": "# Example\r\n",
		"any/.listfiles":        "Files\r\n",
		"any/a.gmi":             "a",
		"any/sub/":              "",
		"any/upload/.listfiles": "Uploads\r\n",
	})
	writeProgram(t, filepath.Join(root, "any", "upload", "put"), "printf '2 text/plain\\r\\n'\n/bin/cat\n")
	_, gate := startTestServer(t, root, `.maxUploadSize = 16`)
	address := gate.listener.Addr().String()

	tests := []struct {
		request   string
		halfClose bool
		reply     string
	}{
		{"example.org /index.gmi 0\r\n", false, "2 text/gemini\r\n# Example\r\n"},
		{"example.org / 0\r\n", false, "2 text/gemini\r\n# Example\r\n"},
		{"localhost / 0\r\n", false, "2 text/gemini\r\nFiles\r\n\r\n=> /a.gmi a.gmi\r\n=> /sub/ <sub>\r\n=> /upload/ <upload>\r\n"},
		{"localhost /sub/ 0\r\n", false, "4 Not allowed\r\n"},
		{"localhost /upload/put 6\r\nsecret", false, "2 text/plain\r\nsecret"},
		{"localhost /upload/put 6\r\nsec", true, "4 Wrong data size: expect 6 got 3\r\n"},
		{"localhost /upload/put 17\r\n", false, "4 Upload too big\r\n"},
		{"localhost /a.gmi 0", true, "2 text/gemini\r\na"},
		{"", true, "4 Empty request\r\n"},
	}
	for i, test := range tests {
		if got := tcpExchange(t, address, test.request, test.halfClose); got != test.reply {
			t.Errorf("#%d: request=%q reply=%q want=%q", i, test.request, got, test.reply)
		}
	}
}

func TestSpartanGateConcurrent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"any/a.gmi": "a"})
	_, gate := startTestServer(t, root, `.readTimeout = 5s`)
	address := gate.listener.Addr().String()

	var wg sync.WaitGroup
	replies := make([]string, 16)
	errs := make([]error, 16)
	for i := range replies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			replies[i], errs[i] = dialExchange(address, "h /a.gmi 0\r\n", false)
		}(i)
	}
	wg.Wait()
	for i, reply := range replies {
		if errs[i] != nil || reply != "2 text/gemini\r\na" {
			t.Errorf("#%d: reply=%q error=%v", i, reply, errs[i])
		}
	}
}

func TestSpartanGateShut(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"any/a.gmi": "a"})
	server, gate := startTestServer(t, root, ``)
	address := gate.listener.Addr().String()
	if got := tcpExchange(t, address, "h /a.gmi 0\r\n", false); got != "2 text/gemini\r\na" {
		t.Fatalf("reply=%q", got)
	}

	done := make(chan struct{})
	go func() {
		server.OnShutdown()
		server.WaitSubs()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("gate did not stop")
	}
	if !gate.IsShut() {
		t.Error("gate is not marked shut")
	}
	if _, err := net.DialTimeout("tcp", address, time.Second); err == nil {
		t.Error("gate still accepts conns")
	}
}
