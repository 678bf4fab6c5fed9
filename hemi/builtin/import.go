// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Builtin components are the standard components that supplement the core components of the Hemi Engine.

package builtin

import ( // preload all
	_ "github.com/hexinfra/spartan/hemi/builtin/loggers/simple"
)
