// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/log"
	"zombiezen.com/go/luavm"
)

type compileOptions struct {
	inputs     []string
	output     string
	list       int
	parseOnly  bool
	compress   bool
	rawPC      bool
	concurrent int
}

func newCompileCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "compile [options] FILE [...]",
		Short:                 "compile Lua source files to binary chunks",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(compileOptions)
	c.Flags().StringVarP(&opts.output, "output", "o", "", "output to `file` (only with a single input)")
	c.Flags().CountVarP(&opts.list, "list", "l", "produce a listing of compiled bytecode (twice for full listing)")
	c.Flags().BoolVarP(&opts.parseOnly, "parse-only", "p", false, "do not write bytecode")
	c.Flags().BoolVar(&opts.compress, "bzip2", false, "compress output with bzip2")
	c.Flags().BoolVarP(&opts.rawPC, "raw-pc", "0", false, "show literal PC values")
	c.Flags().IntVarP(&opts.concurrent, "jobs", "j", runtime.GOMAXPROCS(0), "compile up to `n` files at once")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.inputs = args
		return runCompile(cmd.Context(), g, opts)
	}
	return c
}

func runCompile(ctx context.Context, g *globalConfig, opts *compileOptions) error {
	if opts.output != "" && len(opts.inputs) > 1 {
		return fmt.Errorf("--output cannot be used with multiple inputs")
	}
	listings := make([]bytes.Buffer, len(opts.inputs))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(max(opts.concurrent, 1))
	for i, input := range opts.inputs {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			output := opts.output
			if output == "" {
				output = chunkPath(input, opts.compress)
			}
			return compileFile(ctx, g, input, output, &listings[i], opts)
		})
	}
	err := grp.Wait()
	for i := range listings {
		if _, err := listings[i].WriteTo(os.Stdout); err != nil {
			return err
		}
	}
	return err
}

// compileFile compiles a single file in its own runtime.
func compileFile(ctx context.Context, g *globalConfig, input, output string, listing *bytes.Buffer, opts *compileOptions) error {
	src, err := readChunk(input)
	if err != nil {
		return err
	}
	if luavm.IsBinaryChunk(src) {
		return fmt.Errorf("%s is already compiled", input)
	}
	nvm := luavm.New(g.conf())
	defer nvm.Close()

	if opts.list == 0 && !opts.parseOnly {
		return writeCompiled(ctx, output, opts.compress, func(w io.Writer) (int64, error) {
			return nvm.CompileTo(w, input, string(src))
		})
	}
	chunk, err := nvm.Compile(input, string(src))
	if err != nil {
		return err
	}
	if opts.list > 0 {
		err := luavm.Disassemble(listing, chunk, &luavm.DisassembleOptions{
			Full:  opts.list > 1,
			RawPC: opts.rawPC,
		})
		if err != nil {
			return err
		}
	}
	if opts.parseOnly {
		return nil
	}
	return writeCompiled(ctx, output, opts.compress, func(w io.Writer) (int64, error) {
		n, err := w.Write(chunk)
		return int64(n), err
	})
}

// writeCompiled creates output and fills it with write.
// output is removed if write fails.
func writeCompiled(ctx context.Context, output string, compress bool, write func(io.Writer) (int64, error)) error {
	w, err := createChunk(output, compress)
	if err != nil {
		return err
	}
	n, err := write(w)
	closeErr := w.Close()
	if err != nil {
		os.Remove(output)
		return err
	}
	if closeErr != nil {
		os.Remove(output)
		return closeErr
	}
	log.Debugf(ctx, "Wrote %d bytes of bytecode to %s", n, output)
	return nil
}

// chunkPath returns the default output path for a source file.
func chunkPath(input string, compress bool) string {
	var out string
	if input == "-" {
		out = "luac.out"
	} else {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".luac"
	}
	if compress {
		out += ".bz2"
	}
	return out
}

type disasmOptions struct {
	input string
	full  bool
	rawPC bool
}

func newDisasmCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "disasm [options] FILE",
		Short:                 "list the bytecode in a binary chunk or source file",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(disasmOptions)
	c.Flags().BoolVar(&opts.full, "full", false, "include constants, locals, and upvalues")
	c.Flags().BoolVarP(&opts.rawPC, "raw-pc", "0", false, "show literal PC values")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.input = args[0]
		return runDisasm(cmd.Context(), g, opts)
	}
	return c
}

func runDisasm(ctx context.Context, g *globalConfig, opts *disasmOptions) error {
	chunk, err := readChunk(opts.input)
	if err != nil {
		return err
	}
	if !luavm.IsBinaryChunk(chunk) {
		log.Debugf(ctx, "Compiling %s before listing", opts.input)
		nvm := luavm.New(g.conf())
		chunk, err = nvm.Compile(opts.input, string(chunk))
		nvm.Close()
		if err != nil {
			return err
		}
	}
	return luavm.Disassemble(os.Stdout, chunk, &luavm.DisassembleOptions{
		Full:  opts.full,
		RawPC: opts.rawPC,
	})
}
