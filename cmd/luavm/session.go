// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"zombiezen.com/go/log"
	"zombiezen.com/go/luavm"
	"zombiezen.com/go/luavm/internal/modcache"
)

// hostModuleName is the module that exposes the host process to scripts.
const hostModuleName = "host"

// moduleSuffixes are appended to a module's relative path
// in the order they are searched.
var moduleSuffixes = []string{
	".lua",
	".luac",
	".lua.bz2",
	".luac.bz2",
	string(filepath.Separator) + "init.lua",
}

// A session is a runtime configured with the file importer.
type session struct {
	vm    *luavm.VM
	cache *modcache.Cache
}

func (g *globalConfig) newSession(ctx context.Context, args []string) *session {
	imp := &importer{
		ctx:  ctx,
		dirs: g.Path,
		host: hostNatives(ctx, args),
	}
	if g.CacheDB != "" {
		var err error
		imp.cache, err = modcache.Open(g.CacheDB)
		if err != nil {
			log.Warnf(ctx, "Bytecode cache unavailable: %v", err)
			imp.cache = nil
		}
	}
	conf := g.conf().
		ImportCallback(imp.importModule).
		ErrorCallback(func(e *luavm.Error) {
			log.Debugf(ctx, "%v reported at %s:%d", e.Kind, e.Path, e.Line)
		})
	return &session{
		vm:    luavm.New(conf).InitRuntime(),
		cache: imp.cache,
	}
}

func (s *session) close(ctx context.Context) {
	if err := s.vm.Close(); err != nil {
		log.Errorf(ctx, "%v", err)
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			log.Errorf(ctx, "%v", err)
		}
	}
}

// importer resolves imports from files in a list of directories.
type importer struct {
	ctx   context.Context
	dirs  []string
	cache *modcache.Cache
	host  []luavm.NativeReg
}

func (imp *importer) importModule(vm *luavm.VM, name string) (luavm.Module, error) {
	if name == hostModuleName {
		return luavm.SourceModule("", "(host)", imp.host...), nil
	}
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return luavm.Module{}, fmt.Errorf("invalid module name %q", name)
	}
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))
	for _, dir := range imp.dirs {
		for _, suffix := range moduleSuffixes {
			path := filepath.Join(dir, rel+suffix)
			code, err := readChunk(path)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return luavm.Module{}, err
			}
			log.Debugf(imp.ctx, "Found module %q at %s", name, path)
			if luavm.IsBinaryChunk(code) {
				return luavm.BinaryModule(code, path), nil
			}
			return imp.sourceModule(vm, path, code)
		}
	}
	return luavm.Module{}, luavm.ErrNotFound
}

// sourceModule returns a module for Lua source,
// using the bytecode cache if one is open.
func (imp *importer) sourceModule(vm *luavm.VM, path string, src []byte) (luavm.Module, error) {
	if bytes.IndexByte(src, 0) >= 0 {
		return luavm.Module{}, fmt.Errorf("%s: source contains NUL byte", path)
	}
	if imp.cache == nil {
		return luavm.SourceModule(string(src), path), nil
	}
	chunk, found, err := imp.cache.Get(imp.ctx, path, src)
	if err != nil {
		log.Warnf(imp.ctx, "Reading %s from cache: %v", path, err)
		return luavm.SourceModule(string(src), path), nil
	}
	if found {
		return luavm.BinaryModule(chunk, path), nil
	}
	chunk, err = vm.Compile(path, string(src))
	if err != nil {
		return luavm.Module{}, err
	}
	if err := imp.cache.Put(imp.ctx, path, src, chunk); err != nil {
		log.Warnf(imp.ctx, "Caching %s: %v", path, err)
	}
	return luavm.BinaryModule(chunk, path), nil
}

// hostNatives returns the functions in the host module.
func hostNatives(ctx context.Context, args []string) []luavm.NativeReg {
	logAt := func(logf func(context.Context, string, ...any)) luavm.Native {
		return func(vm *luavm.VM) error {
			msg, err := vm.CheckString(0, "message")
			if err != nil {
				return err
			}
			logf(ctx, "%s", msg.String())
			return nil
		}
	}

	return []luavm.NativeReg{
		{
			Name: "getenv",
			Func: func(vm *luavm.VM) error {
				name, err := vm.CheckString(0, "name")
				if err != nil {
					return err
				}
				if v, ok := os.LookupEnv(name.String()); ok {
					vm.PushString(v)
				}
				return nil
			},
		},
		{
			Name: "nargs",
			Func: func(vm *luavm.VM) error {
				luavm.Push(vm, len(args))
				return nil
			},
		},
		{
			Name: "arg",
			Func: func(vm *luavm.VM) error {
				i, err := luavm.CheckGet[int](vm, 0, "i")
				if err != nil {
					return err
				}
				if 1 <= i && i <= len(args) {
					vm.PushString(args[i-1])
				}
				return nil
			},
		},
		{Class: "log", Name: "debug", Func: logAt(log.Debugf)},
		{Class: "log", Name: "info", Func: logAt(log.Infof)},
		{Class: "log", Name: "warn", Func: logAt(log.Warnf)},
		{Class: "log", Name: "error", Func: logAt(log.Errorf)},
	}
}
