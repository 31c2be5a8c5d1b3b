// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

//go:build unix

package main

import (
	"iter"
	"os"
	"path/filepath"

	"go4.org/xdgdir"
	"golang.org/x/sys/unix"
)

// interruptSignals are the signals that stop a running evaluation in the REPL.
var interruptSignals = []os.Signal{unix.SIGINT}

func cacheDir() string {
	return xdgdir.Cache.Path()
}

// configFiles returns the configuration file paths
// in increasing order of preference.
func configFiles() iter.Seq[string] {
	return func(yield func(string) bool) {
		dirs := xdgdir.Config.SearchPaths()
		for i := len(dirs) - 1; i >= 0; i-- {
			if !yield(filepath.Join(dirs[i], "luavm", "config.jwcc")) {
				return
			}
		}
	}
}
