// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Spartan connection. One connection carries exactly one request and one response.

package hemi

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"
	"unicode/utf8"
)

const spartanMaxLineSize = _16K // request lines longer than this are refused

var (
	errLineTooLong = errors.New("request line too long")
	errInvalidUTF8 = errors.New("request line is not valid utf-8")
)

// poolSpartanConn is the pool of spartanConns.
var poolSpartanConn sync.Pool

func getSpartanConn(id int64, gate *spartanGate, netConn net.Conn) *spartanConn {
	var conn *spartanConn
	if x := poolSpartanConn.Get(); x == nil {
		conn = new(spartanConn)
		conn.reader = bufio.NewReaderSize(netConn, _4K)
	} else {
		conn = x.(*spartanConn)
		conn.reader.Reset(netConn)
	}
	conn.onGet(id, gate, netConn)
	return conn
}
func putSpartanConn(conn *spartanConn) {
	conn.onPut()
	poolSpartanConn.Put(conn)
}

// spartanConn is a full-duplex connection. Reads and writes are strictly sequenced.
type spartanConn struct {
	// Conn states (stocks)
	// Conn states (controlled)
	reader *bufio.Reader // reused across conns
	// Conn states (non-zeros)
	id      int64
	gate    *spartanGate // may be nil in tests
	netConn net.Conn
	// Conn states (zeros)
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *spartanConn) onGet(id int64, gate *spartanGate, netConn net.Conn) {
	c.id = id
	c.gate = gate
	c.netConn = netConn
}
func (c *spartanConn) onPut() {
	c.reader.Reset(nil)
	c.gate = nil
	c.netConn = nil
	c.readTimeout = 0
	c.writeTimeout = 0
}

func (c *spartanConn) setTimeouts(readTimeout time.Duration, writeTimeout time.Duration) {
	c.readTimeout = readTimeout
	c.writeTimeout = writeTimeout
}

func (c *spartanConn) remoteAddr() string {
	if addr := c.netConn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

func (c *spartanConn) _beforeRead() error {
	if c.readTimeout > 0 {
		return c.netConn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return nil
}
func (c *spartanConn) _beforeWrite() error {
	if c.writeTimeout > 0 {
		return c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return nil
}

// readLine reads until LF or EOF and returns the line without trailing CR and LF.
func (c *spartanConn) readLine() (string, error) {
	if err := c._beforeRead(); err != nil {
		return "", ioError("read", "", err)
	}
	var line []byte
	for {
		fragment, err := c.reader.ReadSlice('\n')
		if len(line)+len(fragment) > spartanMaxLineSize {
			return "", ioError("read", "", errLineTooLong)
		}
		line = append(line, fragment...)
		if err == nil || err == io.EOF {
			break
		}
		if err != bufio.ErrBufferFull {
			return "", ioError("read", "", err)
		}
	}
	line = trimCRLF(line)
	if !utf8.Valid(line) {
		return "", ioError("read", "", errInvalidUTF8)
	}
	return string(line), nil
}

// readExactCount reads n bytes. If the peer closes early, it returns what has been read without an error.
func (c *spartanConn) readExactCount(n int64) ([]byte, error) {
	if err := c._beforeRead(); err != nil {
		return nil, ioError("read", "", err)
	}
	data := make([]byte, n)
	got, err := io.ReadFull(c.reader, data)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return data[:got], nil
	}
	if err != nil {
		return nil, ioError("read", "", err)
	}
	return data, nil
}

// writeAll writes all the buffers with one writev if possible.
func (c *spartanConn) writeAll(vector ...[]byte) error {
	if err := c._beforeWrite(); err != nil {
		return ioError("write", "", err)
	}
	buffers := net.Buffers(vector)
	if _, err := buffers.WriteTo(c.netConn); err != nil {
		return ioError("write", "", err)
	}
	return nil
}

func (c *spartanConn) writeResponse(resp Response) error {
	if resp.HasContent() && len(resp.Content()) > 0 {
		return c.writeAll(resp.RenderHeader(), resp.Content())
	}
	return c.writeAll(resp.RenderHeader())
}

func (c *spartanConn) closeConn() {
	c.netConn.Close()
}
