// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

//go:build unix

// Net for unix-like systems.

package system

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// SetReusePort lets many gates listen on the same address.
func SetReusePort(rawConn syscall.RawConn) (err error) {
	if cerr := rawConn.Control(func(fd uintptr) {
		err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	}); cerr != nil {
		return cerr
	}
	return
}
