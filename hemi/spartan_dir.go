// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Directory pipeline. Index files are tried first. Listings are opt-in: a directory must contain a .listfiles header.

package hemi

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const listFilesName = ".listfiles"

// processDirectory serves the first index file that can be served, or else a listing.
func (r *spartanRouter) processDirectory(ctx context.Context, req Request) (Response, error) {
	locator := req.Locator()
	for _, indexFile := range r.settings.IndexFiles {
		resp, err := r.processFile(ctx, req.withLocator(locator+indexFile))
		if err == nil {
			return resp, nil
		}
		var e *Error
		if errors.As(err, &e) && e.Kind == ErrorIO {
			continue
		}
		return Response{}, err
	}
	return r.listDirectory(req)
}

// listDirectory makes a listing from the .listfiles header and the directory entries, sorted by name.
func (r *spartanRouter) listDirectory(req Request) (Response, error) {
	locator := req.Locator()
	dirPath := r.resolvePath(req.Host(), locator)

	header, err := os.ReadFile(filepath.Join(dirPath, listFilesName))
	if err != nil {
		return Response{}, wrapError(ErrNotAllowed, "listing", locator, nil)
	}
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return Response{}, ioError("listing", locator, err)
	}

	var listing bytes.Buffer
	listing.Write(header)
	listing.WriteString("\r\n")
	for _, entry := range entries {
		name := entry.Name()
		if name == listFilesName {
			continue
		}
		listing.WriteString("=> ")
		listing.WriteString(locator)
		listing.WriteString(escapeEntryName(name))
		if entry.IsDir() {
			listing.WriteString("/ <")
			listing.WriteString(name)
			listing.WriteString(">\r\n")
		} else {
			listing.WriteByte(' ')
			listing.WriteString(name)
			listing.WriteString("\r\n")
		}
	}
	return newSuccess(r.settings.ListingType, listing.Bytes()), nil
}

// escapeEntryName percent-encodes everything except unreserved characters.
func escapeEntryName(name string) string {
	return strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}
