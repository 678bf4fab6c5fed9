// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// File pipeline.

package hemi

import (
	"context"
	"os"

	"github.com/hexinfra/spartan/hemi/library/system"
)

// processFile serves a plain file or runs it as a CGI program if it is executable.
func (r *spartanRouter) processFile(ctx context.Context, req Request) (Response, error) {
	filePath := r.resolvePath(req.Host(), req.Locator())

	if system.IsExecutable(filePath) {
		return r.runCGI(ctx, filePath, req.Data())
	}
	if req.DataLen() > 0 { // only programs accept data
		return Response{}, wrapError(ErrNotAllowed, "file", req.Locator(), nil)
	}

	if info, err := os.Stat(filePath); err == nil && info.IsDir() {
		return newRedirect(req.Locator() + "/"), nil
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return Response{}, ioError("read", req.Locator(), err)
	}
	return newSuccess(r.settings.TypeOf(filePath), content), nil
}
