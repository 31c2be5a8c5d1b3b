// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import "zombiezen.com/go/luavm/internal/lua54"

// Conf is the configuration for [New].
// The zero value is not ready to use: start from [DefaultConf].
type Conf struct {
	startingStackSize      int
	firstGCCollectionPoint int
	heapGrowRate           int
	errorCallback          ErrorFunc
	importCallback         ImportFunc
}

// DefaultConf returns a new configuration with the runtime's defaults:
// a 100 slot starting stack, a first collection after 10 MiB,
// and a heap growth rate of 2.
func DefaultConf() *Conf {
	c := lua54.DefaultConf()
	return &Conf{
		startingStackSize:      c.StartingStackSize,
		firstGCCollectionPoint: c.FirstGCCollectionPoint,
		heapGrowRate:           c.HeapGrowRate,
	}
}

// StartingStackSize sets the number of stack slots allocated up front.
func (c *Conf) StartingStackSize(n int) *Conf {
	c.startingStackSize = n
	return c
}

// FirstGCCollectionPoint sets the number of bytes allocated
// before the garbage collector first runs.
// Zero lets the collector run from the start.
func (c *Conf) FirstGCCollectionPoint(bytes int) *Conf {
	c.firstGCCollectionPoint = bytes
	return c
}

// HeapGrowRate sets the factor the heap grows by between collections.
func (c *Conf) HeapGrowRate(rate int) *Conf {
	c.heapGrowRate = rate
	return c
}

// ErrorCallback sets the function called for syntax, compile, and runtime errors.
func (c *Conf) ErrorCallback(f ErrorFunc) *Conf {
	c.errorCallback = f
	return c
}

// ImportCallback sets the function that resolves modules for import.
func (c *Conf) ImportCallback(f ImportFunc) *Conf {
	c.importCallback = f
	return c
}

func (c *Conf) raw() lua54.Conf {
	return lua54.Conf{
		StartingStackSize:      c.startingStackSize,
		FirstGCCollectionPoint: c.firstGCCollectionPoint,
		HeapGrowRate:           c.heapGrowRate,
	}
}
