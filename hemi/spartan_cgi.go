// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// CGI programs. A program reads the request data from stdin and writes "<digit> <meta>\n<content>" to stdout.
// It runs in its own directory with an empty environment.

package hemi

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/hexinfra/spartan/hemi/library/system"
)

const cgiWaitDelay = time.Second // after cancel, Wait gives up on pipes held by leftovers

var (
	errCGINoStatus   = errors.New("program closed stdout before status")
	errCGIInvalidUTF = errors.New("meta line is not valid utf-8")
)

// runCGI runs the program at path with data on its stdin and decodes its reply.
func (r *spartanRouter) runCGI(ctx context.Context, path string, data []byte) (Response, error) {
	program, err := filepath.Abs(path)
	if err != nil {
		return Response{}, ioError("cgi", path, err)
	}
	if timeout := r.settings.CGITimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, program)
	cmd.Env = []string{}
	cmd.Dir = filepath.Dir(program)
	cmd.WaitDelay = cgiWaitDelay
	system.SetGroupKill(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Response{}, ioError("cgi", path, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Response{}, ioError("cgi", path, err)
	}
	if err := cmd.Start(); err != nil {
		return Response{}, ioError("cgi", path, err)
	}

	written := make(chan error, 1)
	go func() {
		var err error
		if len(data) > 0 {
			_, err = stdin.Write(data)
		}
		if cerr := stdin.Close(); err == nil {
			err = cerr
		}
		if errors.Is(err, syscall.EPIPE) { // the program chose not to read its data
			err = nil
		}
		written <- err
	}()

	resp, readErr := decodeCGIReply(stdout)
	if readErr != nil {
		io.Copy(io.Discard, stdout) // let the program finish
	}
	writeErr := <-written // stdin must be closed by us before Wait closes it
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Response{}, ioError("cgi", path, ctxErr)
	}
	if readErr != nil {
		return Response{}, ioError("cgi", path, readErr)
	}
	if writeErr != nil {
		return Response{}, ioError("cgi", path, writeErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) { // exit codes are ignored, the reply is what counts
		return Response{}, ioError("cgi", path, waitErr)
	}
	return resp, nil
}

// decodeCGIReply decodes "<digit> <meta>\n<content>". A status token that is not a single digit in 2..5 means server error.
func decodeCGIReply(reply io.Reader) (Response, error) {
	reader := bufio.NewReader(reply)

	token, err := reader.ReadBytes(' ')
	if err == io.EOF {
		return Response{}, errCGINoStatus
	}
	if err != nil {
		return Response{}, err
	}
	token = token[:len(token)-1]
	status := StatusServerError
	if len(token) == 1 {
		status = statusFromDigit(token[0])
	}

	meta, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return Response{}, err
	}
	meta = trimCRLF(meta)
	if !utf8.Valid(meta) {
		return Response{}, errCGIInvalidUTF
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return Response{}, err
	}
	return NewResponse(status, string(meta), content), nil
}
