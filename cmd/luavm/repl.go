// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"zombiezen.com/go/log"
	"zombiezen.com/go/luavm"
	"zombiezen.com/go/xcontext"
)

const (
	replPath   = "stdin"
	replModule = "repl"
)

func newREPLCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "repl [options]",
		Short:                 "start an interactive interpreter",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context(), g)
	}
	return c
}

func runREPL(ctx context.Context, g *globalConfig) error {
	sess := g.newSession(ctx, nil)
	defer sess.close(ctx)

	// Interrupts stop the running evaluation instead of the process.
	signal.Reset(interruptSignals...)
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, interruptSignals...)
	defer signal.Stop(interrupts)
	var evaluating atomic.Bool
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-interrupts:
				if evaluating.Load() {
					sess.vm.Break()
				}
			case <-done:
				return
			}
		}
	}()

	stdin := xcontext.CloseWhenDone(ctx, os.Stdin)
	defer stdin.Close()
	r := &repl{
		vm:          sess.vm,
		in:          bufio.NewScanner(os.Stdin),
		out:         os.Stdout,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		evaluating:  &evaluating,
	}
	err := r.loop()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

type repl struct {
	vm          *luavm.VM
	in          *bufio.Scanner
	out         io.Writer
	interactive bool
	evaluating  *atomic.Bool
}

func (r *repl) loop() error {
	pending := new(strings.Builder)
	for {
		if r.interactive {
			prompt := "> "
			if pending.Len() > 0 {
				prompt = ">> "
			}
			io.WriteString(r.out, prompt)
		}
		if !r.in.Scan() {
			if r.interactive {
				io.WriteString(r.out, "\n")
			}
			return r.in.Err()
		}
		pending.WriteString(r.in.Text())
		pending.WriteString("\n")

		result, err := r.eval(pending.String())
		if isIncomplete(err) {
			continue
		}
		pending.Reset()
		switch {
		case err != nil:
			fmt.Fprintln(r.out, err)
		case result != "":
			fmt.Fprintln(r.out, result)
		}
	}
}

// eval runs src as an expression if it is one
// and as a block of statements otherwise.
func (r *repl) eval(src string) (string, error) {
	r.evaluating.Store(true)
	defer r.evaluating.Store(false)

	result, err := evalExpression(r.vm, replPath, replModule, src)
	if err == nil {
		if result == "nil" {
			result = ""
		}
		return result, nil
	}
	if !luavm.IsSyntax(err) {
		return "", err
	}
	log.Debugf(context.TODO(), "Input is not an expression: %v", err)
	return "", r.vm.EvalStringModule(replPath, replModule, src)
}

// isIncomplete reports whether err is a syntax error
// caused by reaching the end of the input.
func isIncomplete(err error) bool {
	e, ok := luavm.AsError(err)
	return ok && e.Kind == luavm.Syntax && strings.HasSuffix(e.Message, "<eof>")
}
