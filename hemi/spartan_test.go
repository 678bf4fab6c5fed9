// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package hemi

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		line    string
		host    string
		locator string
		dataLen int64
	}{
		{"my-good-host.com /../../../../etc/passwd 0", "my-good-host.com", "/etc/passwd", 0},
		{"my-good-host.com /resource%20test 0", "my-good-host.com", "/resource test", 0},
		{"host.com /addr 12", "host.com", "/addr", 12},
		{"h / 0", "h", "/", 0},
		{"h /a/b/../c 0", "h", "/a/c", 0},
		{"h /a/./b/ 0", "h", "/a/b/", 0},
		{"h /a/b/.. 0", "h", "/a/", 0},
		{"h /docs/ 0", "h", "/docs/", 0},
		{"h /%2e%2e/%2e%2e/secret 0", "h", "/secret", 0},
		{"h //double//slash 0", "h", "/double/slash", 0},
		{"h /q?x=1 0", "h", "/q", 0},
	}
	for i, test := range tests {
		req, err := ParseRequestLine(test.line)
		if err != nil {
			t.Errorf("#%d: ParseRequestLine(%q) error=%v", i, test.line, err)
			continue
		}
		if req.Host() != test.host || req.Locator() != test.locator || req.DataLen() != test.dataLen {
			t.Errorf("#%d: got (%s, %s, %d) want (%s, %s, %d)", i, req.Host(), req.Locator(), req.DataLen(), test.host, test.locator, test.dataLen)
		}
		if req.HasData() {
			t.Errorf("#%d: parsed request has data", i)
		}
		if strings.Contains(req.Locator(), "..") {
			t.Errorf("#%d: locator %s escapes root", i, req.Locator())
		}
	}
}

func TestParseRequestLineFailures(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrEmptyRequest},
		{"host", ErrMalformedRequest},
		{"host /path", ErrMalformedRequest},
		{"host /path 0 extra", ErrMalformedRequest},
		{"host  /path 0", ErrMalformedRequest},
		{"somehost /some/path not-a-number", ErrMalformedRequest},
		{"host /path -1", ErrMalformedRequest},
		{"host /path +1", ErrMalformedRequest},
		{"host /path ", ErrMalformedRequest},
		{"host relative 0", ErrMalformedRequest},
		{"host /bad%zzescape 0", ErrMalformedRequest},
	}
	for i, test := range tests {
		_, err := ParseRequestLine(test.line)
		if !errors.Is(err, test.want) {
			t.Errorf("#%d: ParseRequestLine(%q) error=%v want=%v", i, test.line, err, test.want)
		}
	}
}

func TestParseFailureText(t *testing.T) {
	tests := []struct {
		line string
		text string
	}{
		{"host /bad%zzescape 0", `Can't parse request string: invalid URL escape "%zz"`},
		{"host relative 0", "Can't parse request string: relative locator"},
		{"host /path x", "Can't parse request string"},
		{"host /path", "Can't parse request string"},
	}
	for i, test := range tests {
		_, err := ParseRequestLine(test.line)
		var e *Error
		if !errors.As(err, &e) || e.Text() != test.text {
			t.Errorf("#%d: ParseRequestLine(%q) error=%v want text %q", i, test.line, err, test.text)
		}
	}
}

func TestAppendData(t *testing.T) {
	req, err := ParseRequestLine("host /addr 12")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		data []byte
		ok   bool
	}{
		{[]byte("Hello world!"), true},
		{[]byte("lorem ipsum"), false},
		{[]byte{}, false},
		{nil, false},
		{[]byte("Hello world!!"), false},
	}
	for i, test := range tests {
		got, err := req.AppendData(test.data)
		if test.ok {
			if err != nil {
				t.Errorf("#%d: error=%v", i, err)
				continue
			}
			if !got.HasData() || !bytes.Equal(got.Data(), test.data) {
				t.Errorf("#%d: data not attached", i)
			}
			if req.HasData() {
				t.Errorf("#%d: original request changed", i)
			}
		} else if !errors.Is(err, ErrSizeMismatch) {
			t.Errorf("#%d: error=%v want size mismatch", i, err)
		}
	}

	empty, _ := ParseRequestLine("host /addr 0")
	if got, err := empty.AppendData(nil); err != nil || !got.HasData() {
		t.Errorf("zero length data: error=%v", err)
	}
}

func TestSizeMismatchText(t *testing.T) {
	req, _ := ParseRequestLine("host /addr 12")
	_, err := req.AppendData([]byte("abc"))
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error=%v is not *Error", err)
	}
	if want := "Wrong data size: expect 12 got 3"; e.Text() != want {
		t.Errorf("text=%q want=%q", e.Text(), want)
	}
}

func TestRequestWith(t *testing.T) {
	req, _ := ParseRequestLine("example.org /dir/ 0")
	moved := req.withHost("any").withLocator("/dir/index.gmi")
	if req.Host() != "example.org" || req.Locator() != "/dir/" {
		t.Errorf("original changed: %s", req)
	}
	if moved.Host() != "any" || moved.Locator() != "/dir/index.gmi" {
		t.Errorf("moved: %s", moved)
	}
}

func TestRenderHeader(t *testing.T) {
	tests := []struct {
		resp Response
		want string
	}{
		{newClientError("error"), "4 error\r\n"},
		{newServerError("I'm down"), "5 I'm down\r\n"},
		{newRedirect("/new-location"), "3 /new-location\r\n"},
		{newSuccess("text/gemini", []byte("# hi")), "2 text/gemini\r\n"},
		{NewResponse(StatusSuccess, "", nil), "2 \r\n"},
	}
	for i, test := range tests {
		if got := string(test.resp.RenderHeader()); got != test.want {
			t.Errorf("#%d: RenderHeader()=%q want=%q", i, got, test.want)
		}
	}
	if newClientError("x").HasContent() {
		t.Error("client error has content")
	}
	if resp := newSuccess("text/plain", nil); !resp.HasContent() {
		t.Error("success without content")
	}
}

func TestStatusFromDigit(t *testing.T) {
	tests := []struct {
		digit byte
		want  StatusCode
	}{
		{'2', StatusSuccess},
		{'3', StatusRedirect},
		{'4', StatusClientError},
		{'5', StatusServerError},
		{'1', StatusServerError},
		{'9', StatusServerError},
		{'x', StatusServerError},
	}
	for i, test := range tests {
		if got := statusFromDigit(test.digit); got != test.want {
			t.Errorf("#%d: statusFromDigit(%c)=%s want=%s", i, test.digit, got, test.want)
		}
	}
}

func TestResponseForError(t *testing.T) {
	ioErr := ioError("read", "/secret.gmi", os.ErrPermission)
	tests := []struct {
		err    error
		expose bool
		want   string
	}{
		{ErrEmptyRequest, false, "4 Empty request\r\n"},
		{ErrUploadTooBig, false, "4 Upload too big\r\n"},
		{wrapError(ErrNotAllowed, "file", "/a", nil), false, "4 Not allowed\r\n"},
		{wrapError(ErrHostNotServed, "route", "h", nil), false, "5 Host not served\r\n"},
		{ioErr, false, "5 Internal server error\r\n"},
		{ioErr, true, "5 Io error: permission denied\r\n"},
		{errors.New("boom"), false, "5 Internal server error\r\n"},
		{errors.New("boom"), true, "5 Unexpected error: boom\r\n"},
	}
	for i, test := range tests {
		if got := string(responseForError(test.err, test.expose).RenderHeader()); got != test.want {
			t.Errorf("#%d: got %q want %q", i, got, test.want)
		}
	}
}

func TestErrorIs(t *testing.T) {
	wrapped := wrapError(ErrNotAllowed, "listing", "/docs/", nil)
	if !errors.Is(wrapped, ErrNotAllowed) {
		t.Error("wrapped error does not match its sentinel")
	}
	if errors.Is(wrapped, ErrHostNotServed) {
		t.Error("wrapped error matches another sentinel")
	}
	ioErr := ioError("read", "/x", os.ErrNotExist)
	if !errors.Is(ioErr, os.ErrNotExist) {
		t.Error("io error does not unwrap")
	}
	if got := ioErr.Error(); !strings.Contains(got, "io error in read /x") {
		t.Errorf("Error()=%q", got)
	}
}
