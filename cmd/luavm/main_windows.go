// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"iter"
	"os"
	"path/filepath"
)

var interruptSignals = []os.Signal{os.Interrupt}

func cacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return dir
}

func configFiles() iter.Seq[string] {
	return func(yield func(string) bool) {
		if dir, err := os.UserConfigDir(); err == nil {
			yield(filepath.Join(dir, "luavm", "config.jwcc"))
		}
	}
}
