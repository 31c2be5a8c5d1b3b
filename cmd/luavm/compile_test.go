// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"zombiezen.com/go/luavm"
	"zombiezen.com/go/luavm/internal/testcontext"
)

func TestCompile(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "Plain"
		if compress {
			name = "Bzip2"
		}
		t.Run(name, func(t *testing.T) {
			ctx, cancel := testcontext.New(t)
			defer cancel()
			dir := t.TempDir()
			inputs := []string{filepath.Join(dir, "a.lua"), filepath.Join(dir, "b.lua")}
			writeTestFile(t, inputs[0], []byte("x = 1\n"))
			writeTestFile(t, inputs[1], []byte("local function f() return 2 end\ny = f()\n"))

			err := runCompile(ctx, defaultGlobalConfig(), &compileOptions{
				inputs:     inputs,
				compress:   compress,
				concurrent: 2,
			})
			if err != nil {
				t.Fatal(err)
			}

			vm := luavm.New(nil).InitRuntime()
			defer vm.Close()
			for _, input := range inputs {
				output := chunkPath(input, compress)
				chunk, err := readChunk(output)
				if err != nil {
					t.Fatal(err)
				}
				if !luavm.IsBinaryChunk(chunk) {
					t.Fatalf("%s is not a binary chunk", output)
				}
				if err := vm.Eval(output, chunk); err != nil {
					t.Error(err)
				}
			}
			got, err := evalExpression(vm, "(test)", luavm.MainModule, "x + y")
			if err != nil {
				t.Fatal(err)
			}
			if got != "3" {
				t.Errorf("x + y = %s; want 3", got)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.lua")
	writeTestFile(t, bad, []byte("x =\n"))

	err := runCompile(ctx, defaultGlobalConfig(), &compileOptions{inputs: []string{bad}, concurrent: 1})
	if !luavm.IsSyntax(err) {
		t.Errorf("compile bad.lua = %v; want syntax error", err)
	}
	if _, err := os.Stat(chunkPath(bad, false)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("output after failed compile: %v", err)
	}

	err = runCompile(ctx, defaultGlobalConfig(), &compileOptions{
		inputs: []string{bad, bad},
		output: filepath.Join(dir, "out.luac"),
	})
	if err == nil {
		t.Error("--output with multiple inputs did not return an error")
	}
}

func TestChunkPath(t *testing.T) {
	tests := []struct {
		input    string
		compress bool
		want     string
	}{
		{"foo.lua", false, "foo.luac"},
		{"foo.lua", true, "foo.luac.bz2"},
		{filepath.Join("dir", "foo"), false, filepath.Join("dir", "foo.luac")},
		{"-", false, "luac.out"},
		{"-", true, "luac.out.bz2"},
	}
	for _, test := range tests {
		if got := chunkPath(test.input, test.compress); got != test.want {
			t.Errorf("chunkPath(%q, %t) = %q; want %q", test.input, test.compress, got, test.want)
		}
	}
}
