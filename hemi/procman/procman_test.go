// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package procman

import (
	"testing"
)

func TestFindConfig(t *testing.T) {
	tests := []struct {
		config   string
		existing []string
		base     string
		file     string
		found    bool
	}{
		{"", []string{"/top/conf/spartan.conf", "/etc/spartan/spartan.conf"}, "/top/conf/", "spartan.conf", true},
		{"", []string{"/etc/spartan/spartan.conf"}, "/etc/spartan/", "spartan.conf", true},
		{"", nil, "", "", false},
		{"my.conf", []string{"/top/my.conf", "/top/conf/spartan.conf"}, "/top/", "my.conf", true},
		{"/abs/site.conf", []string{"/abs/site.conf"}, "/abs/", "site.conf", true},
		{"/abs/site.conf", []string{"/top/conf/spartan.conf"}, "", "", false},
	}
	for i, test := range tests {
		exists := func(path string) bool {
			for _, existing := range test.existing {
				if path == existing {
					return true
				}
			}
			return false
		}
		base, file, found := findConfig("/top", test.config, "spartan", exists)
		if base != test.base || file != test.file || found != test.found {
			t.Errorf("#%d: got (%q, %q, %v) want (%q, %q, %v)", i, base, file, found, test.base, test.file, test.found)
		}
	}
}
