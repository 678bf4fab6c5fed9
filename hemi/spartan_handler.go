// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Connection handler: read line, parse, admit, read data, route, write response.

package hemi

import (
	"context"
)

// serveSpartan serves the only request on conn. Transport failures are logged and end the conn without a response.
func serveSpartan(ctx context.Context, conn *spartanConn, settings *Settings, logger Logger) {
	req, resp, err := handleSpartan(ctx, conn, settings, logger)
	if err != nil {
		logger.Logf("spartan: conn=%d peer=%s read failed: %v", conn.id, conn.remoteAddr(), err)
		return
	}
	if err := conn.writeResponse(resp); err != nil {
		logger.Logf("spartan: conn=%d peer=%s write failed: %v", conn.id, conn.remoteAddr(), err)
		return
	}
	logger.Logf("spartan: conn=%d peer=%s host=%s locator=%s dataLen=%d status=%d %s", conn.id, conn.remoteAddr(), req.Host(), req.Locator(), req.DataLen(), resp.Status(), resp.StatusLine())
}

// handleSpartan makes the response for the request on conn. It returns an error only if the transport fails.
func handleSpartan(ctx context.Context, conn *spartanConn, settings *Settings, logger Logger) (req Request, resp Response, err error) {
	line, err := conn.readLine()
	if err != nil {
		return req, resp, err
	}

	if req, err = ParseRequestLine(line); err != nil {
		return req, responseForError(err, settings.ExposeErrors), nil
	}
	if req.DataLen() > settings.MaxUploadSize { // don't read it
		return req, responseForError(ErrUploadTooBig, settings.ExposeErrors), nil
	}
	if req.DataLen() > 0 {
		data, err := conn.readExactCount(req.DataLen())
		if err != nil {
			return req, resp, err
		}
		withData, err := req.AppendData(data)
		if err != nil {
			return req, responseForError(err, settings.ExposeErrors), nil
		}
		req = withData
	}

	router := newSpartanRouter(settings)
	if resp, err = router.safeRoute(ctx, req); err != nil {
		if DebugLevel() >= 1 || !isClientError(err) {
			logger.Logf("spartan: conn=%d peer=%s %v", conn.id, conn.remoteAddr(), err)
		}
		return req, responseForError(err, settings.ExposeErrors), nil
	}
	return req, resp, nil
}

func isClientError(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == ErrorClient
}
