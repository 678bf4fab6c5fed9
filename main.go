// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Spartan server.

package main

import (
	"github.com/hexinfra/spartan/hemi/procman"

	_ "github.com/hexinfra/spartan/hemi/builtin" // all builtin components
)

const defaultConf = `
stage {
    spartanServer "main" {
        .address    = "0.0.0.0:300"
        .serverRoot = %topDir + "/misc/root"
    }
}
`

func main() {
	procman.Main(&procman.Opts{
		ProgramName:  "spartan",
		ProgramTitle: "Spartan",
		DebugLevel:   0,
		DefaultConf:  defaultConf,
	})
}
