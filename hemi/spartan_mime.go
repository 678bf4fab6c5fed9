// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// MIME types for served files.

package hemi

import (
	"path"
	"strings"
)

// mimeTable maps lowercase file extensions to content types.
type mimeTable struct {
	types       map[string]string
	defaultType string
}

func newMimeTable(custom map[string]string, defaultType string) *mimeTable {
	t := &mimeTable{
		types:       make(map[string]string, len(spartanDefaultMimeTypes)+len(custom)),
		defaultType: defaultType,
	}
	for ext, mimeType := range spartanDefaultMimeTypes {
		t.types[ext] = mimeType
	}
	for ext, mimeType := range custom { // overwrite default
		t.types[strings.ToLower(strings.TrimPrefix(ext, "."))] = mimeType
	}
	return t
}

// typeOf returns the content type for the file name, or the default type if the extension is unknown.
func (t *mimeTable) typeOf(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return t.defaultType
	}
	if mimeType, ok := t.types[strings.ToLower(ext[1:])]; ok {
		return mimeType
	}
	return t.defaultType
}

var spartanDefaultMimeTypes = map[string]string{
	"7z":     "application/x-7z-compressed",
	"atom":   "application/atom+xml",
	"bin":    "application/octet-stream",
	"bmp":    "image/x-ms-bmp",
	"css":    "text/css",
	"csv":    "text/csv",
	"gemini": "text/gemini",
	"gif":    "image/gif",
	"gmi":    "text/gemini",
	"htm":    "text/html",
	"html":   "text/html",
	"ico":    "image/x-icon",
	"jpeg":   "image/jpeg",
	"jpg":    "image/jpeg",
	"js":     "application/javascript",
	"json":   "application/json",
	"md":     "text/markdown",
	"mp3":    "audio/mpeg",
	"mp4":    "video/mp4",
	"ogg":    "audio/ogg",
	"pdf":    "application/pdf",
	"png":    "image/png",
	"rss":    "application/rss+xml",
	"svg":    "image/svg+xml",
	"tar":    "application/x-tar",
	"txt":    "text/plain",
	"webp":   "image/webp",
	"xml":    "text/xml",
	"zip":    "application/zip",
}
