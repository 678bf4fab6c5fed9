// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Spartan router. Every directory under the server root is a virtual host, and "any" serves unknown hosts.

package hemi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fallbackHost = "any"

// spartanRouter routes requests to the file and directory pipelines.
type spartanRouter struct {
	settings *Settings
}

func newSpartanRouter(settings *Settings) *spartanRouter {
	return &spartanRouter{settings: settings}
}

// route selects the virtual host and dispatches on the shape of the locator.
func (r *spartanRouter) route(ctx context.Context, req Request) (Response, error) {
	anyExists := r.hostExists(fallbackHost)
	hostExists := r.hostExists(req.Host())

	var selected string
	switch {
	case hostExists:
		selected = req.Host()
	case anyExists:
		selected = fallbackHost
	default:
		return Response{}, wrapError(ErrHostNotServed, "route", req.Host(), nil)
	}
	req = req.withHost(selected)

	if strings.HasSuffix(req.Locator(), "/") {
		return r.processDirectory(ctx, req)
	}
	return r.processFile(ctx, req)
}

// safeRoute is route that turns panics into unexpected errors.
func (r *spartanRouter) safeRoute(ctx context.Context, req Request) (resp Response, err error) {
	defer func() {
		if x := recover(); x != nil {
			resp = Response{}
			err = &Error{Kind: ErrorUnexpected, Op: "route", Path: req.Locator(), Msg: "Unexpected error", Err: fmt.Errorf("panic: %v", x)}
		}
	}()
	return r.route(ctx, req)
}

func (r *spartanRouter) hostExists(host string) bool {
	if !validHostName(host) {
		return false
	}
	info, err := os.Stat(filepath.Join(r.settings.ServerRoot, host))
	return err == nil && info.IsDir()
}

// validHostName reports whether host can name a directory under the server root.
func validHostName(host string) bool {
	if host == "" || host == "." || host == ".." {
		return false
	}
	return !strings.ContainsAny(host, "/\\\x00")
}

// resolvePath joins the server root, the host, and the locator without its leading slash.
func (r *spartanRouter) resolvePath(host string, locator string) string {
	return filepath.Join(r.settings.ServerRoot, host, filepath.FromSlash(strings.TrimPrefix(locator, "/")))
}
