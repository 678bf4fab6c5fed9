// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Spartan protocol elements. A request is one line "<host> <locator> <dataLen>\r\n" followed by dataLen bytes.
// A response is one line "<digit> <statusLine>\r\n" followed by the content, delimited by connection close.

package hemi

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// StatusCode is the leading digit of a response line.
type StatusCode uint8

const (
	StatusSuccess     StatusCode = 2
	StatusRedirect    StatusCode = 3
	StatusClientError StatusCode = 4
	StatusServerError StatusCode = 5
)

func (c StatusCode) String() string {
	switch c {
	case StatusSuccess:
		return "Success"
	case StatusRedirect:
		return "Redirect"
	case StatusClientError:
		return "ClientError"
	default:
		return "ServerError"
	}
}

// statusFromDigit maps a status digit. Unknown digits are server errors.
func statusFromDigit(digit byte) StatusCode {
	switch digit {
	case '2':
		return StatusSuccess
	case '3':
		return StatusRedirect
	case '4':
		return StatusClientError
	default:
		return StatusServerError
	}
}

// ErrorKind classifies errors for the error-to-response boundary.
type ErrorKind uint8

const (
	ErrorIO         ErrorKind = iota + 1 // transport, filesystem and subprocess failures
	ErrorClient                          // bad requests
	ErrorServer                          // requests we cannot serve
	ErrorUnexpected                      // broken invariants
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorIO:
		return "io"
	case ErrorClient:
		return "client"
	case ErrorServer:
		return "server"
	case ErrorUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error is the error type of the spartan engine.
type Error struct {
	Kind ErrorKind
	Op   string // operation, like "read", "cgi", "listing"
	Path string // file or locator involved, if any
	Msg  string // public message
	Err  error  // underlying cause, if any
}

var ( // well known errors. compare with errors.Is()
	ErrEmptyRequest     = &Error{Kind: ErrorClient, Msg: "Empty request"}
	ErrMalformedRequest = &Error{Kind: ErrorClient, Msg: "Can't parse request string"}
	ErrSizeMismatch     = &Error{Kind: ErrorClient, Msg: "Wrong data size"}
	ErrUploadTooBig     = &Error{Kind: ErrorClient, Msg: "Upload too big"}
	ErrNotAllowed       = &Error{Kind: ErrorClient, Msg: "Not allowed"}
	ErrHostNotServed    = &Error{Kind: ErrorServer, Msg: "Host not served"}
)

// wrapError derives a contextual error from a well known one.
func wrapError(base *Error, op string, path string, err error) *Error {
	return &Error{Kind: base.Kind, Op: op, Path: path, Msg: base.Msg, Err: err}
}

// ioError makes an IO error from an underlying failure.
func ioError(op string, path string, err error) *Error {
	return &Error{Kind: ErrorIO, Op: op, Path: path, Msg: "Io error", Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Text())
	return b.String()
}

// Text is the message echoed to peers.
func (e *Error) Text() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind and public message, so wrapped errors match their sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Msg == e.Msg
}

// Request is an immutable spartan request. Methods that change it return a new value.
type Request struct {
	host    string
	locator string // decoded and normalized, always begins with '/'
	dataLen int64
	data    []byte
	hasData bool // data is attached
}

// ParseRequestLine parses a request line without its trailing CRLF.
func ParseRequestLine(line string) (Request, error) {
	if line == "" {
		return Request{}, ErrEmptyRequest
	}
	tokens := strings.Split(line, " ")
	if len(tokens) != 3 {
		return Request{}, ErrMalformedRequest
	}
	host, rawLocator, rawDataLen := tokens[0], tokens[1], tokens[2]
	locator, err := normalizeLocator(rawLocator)
	if err != nil {
		return Request{}, wrapError(ErrMalformedRequest, "parse", rawLocator, err)
	}
	dataLen, err := strconv.ParseInt(rawDataLen, 10, 64)
	if err != nil || dataLen < 0 || rawDataLen[0] == '+' {
		return Request{}, ErrMalformedRequest
	}
	return Request{host: host, locator: locator, dataLen: dataLen}, nil
}

// normalizeLocator decodes the locator and resolves its dot segments against a synthetic root.
func normalizeLocator(locator string) (string, error) {
	if locator == "" || locator[0] != '/' {
		return "", errors.New("relative locator")
	}
	u, err := url.Parse("spartan://localhost" + locator)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok { // drop the synthetic url
			return "", urlErr.Err
		}
		return "", err
	}
	if u.Host != "localhost" || u.Opaque != "" {
		return "", errors.New("invalid locator")
	}
	decoded := u.Path
	if decoded == "" {
		return "/", nil
	}
	cleaned := path.Clean(decoded) // path.Clean treats a rooted ".." as "/"
	if strings.HasSuffix(decoded, "/") && cleaned != "/" {
		cleaned += "/"
	} else if cleaned != "/" && (strings.HasSuffix(decoded, "/.") || strings.HasSuffix(decoded, "/..")) {
		cleaned += "/"
	}
	return cleaned, nil
}

func (r Request) Host() string    { return r.host }
func (r Request) Locator() string { return r.locator }
func (r Request) DataLen() int64  { return r.dataLen }
func (r Request) Data() []byte    { return r.data }
func (r Request) HasData() bool   { return r.hasData }

// AppendData returns a new request carrying data. The size must be exactly DataLen().
func (r Request) AppendData(data []byte) (Request, error) {
	if int64(len(data)) != r.dataLen {
		return r, wrapError(ErrSizeMismatch, "append", r.locator, fmt.Errorf("expect %d got %d", r.dataLen, len(data)))
	}
	r.data = data
	r.hasData = true
	return r, nil
}

func (r Request) withHost(host string) Request {
	r.host = host
	return r
}
func (r Request) withLocator(locator string) Request {
	r.locator = locator
	return r
}

func (r Request) String() string {
	return fmt.Sprintf("%s%s with body that contains %d byte(s)", r.host, r.locator, r.dataLen)
}

// Response is an immutable spartan response.
type Response struct {
	status     StatusCode
	statusLine string
	content    []byte
	hasContent bool
}

func NewResponse(status StatusCode, statusLine string, content []byte) Response {
	return Response{status: status, statusLine: statusLine, content: content, hasContent: content != nil}
}

func newSuccess(contentType string, content []byte) Response {
	if content == nil {
		content = []byte{}
	}
	return NewResponse(StatusSuccess, contentType, content)
}
func newClientError(text string) Response { return NewResponse(StatusClientError, text, nil) }
func newServerError(text string) Response { return NewResponse(StatusServerError, text, nil) }
func newRedirect(location string) Response {
	return NewResponse(StatusRedirect, location, nil)
}

func (r Response) Status() StatusCode { return r.status }
func (r Response) StatusLine() string { return r.statusLine }
func (r Response) Content() []byte    { return r.content }
func (r Response) HasContent() bool   { return r.hasContent }

// RenderHeader returns "<digit> <statusLine>\r\n".
func (r Response) RenderHeader() []byte {
	header := make([]byte, 0, len(r.statusLine)+4)
	header = append(header, '0'+byte(r.status), ' ')
	header = append(header, r.statusLine...)
	header = append(header, '\r', '\n')
	return header
}

func (r Response) String() string {
	return fmt.Sprintf("%s %q content length: %d", r.status, r.statusLine, len(r.content))
}

// internalErrorText replaces io and unexpected error texts unless errors are exposed.
const internalErrorText = "Internal server error"

// responseForError converts a failure into a response. It is the only place where errors become responses.
func responseForError(err error, exposeErrors bool) Response {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: ErrorUnexpected, Msg: "Unexpected error", Err: err}
	}
	switch e.Kind {
	case ErrorClient:
		return newClientError(e.Text())
	case ErrorServer:
		return newServerError(e.Text())
	default:
		if exposeErrors {
			return newServerError(e.Text())
		}
		return newServerError(internalErrorText)
	}
}
