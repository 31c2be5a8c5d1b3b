// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"zombiezen.com/go/luavm"
)

func newRunCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "run [options] FILE [ARG [...]]",
		Short:                 "run a Lua source file or binary chunk",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.Flags().SetInterspersed(false)
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context(), g, args[0], args[1:])
	}
	return c
}

func runRun(ctx context.Context, g *globalConfig, path string, args []string) error {
	code, err := readChunk(path)
	if err != nil {
		return err
	}
	sess := g.newSession(ctx, args)
	defer sess.close(ctx)

	stop := sess.vm.BreakOn(ctx)
	defer stop()
	return sess.vm.Eval(path, code)
}

// evalModule is the module expressions are evaluated in.
const evalModule = "eval"

// resultGlobal is the global an expression's result is stored in.
const resultGlobal = "_result"

func newEvalCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "eval [options] EXPR [...]",
		Short:                 "evaluate Lua expressions and print their values",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runEval(cmd.Context(), g, args)
	}
	return c
}

func runEval(ctx context.Context, g *globalConfig, exprs []string) error {
	sess := g.newSession(ctx, nil)
	defer sess.close(ctx)
	stop := sess.vm.BreakOn(ctx)
	defer stop()

	for _, expr := range exprs {
		s, err := evalExpression(sess.vm, "(eval)", evalModule, expr)
		if err != nil {
			return err
		}
		fmt.Println(s)
	}
	return nil
}

// evalExpression evaluates a Lua expression in the given module
// and returns its value formatted by [formatValue].
func evalExpression(vm *luavm.VM, path, module, expr string) (string, error) {
	if err := vm.EvalStringModule(path, module, resultGlobal+" = ("+expr+"\n)"); err != nil {
		return "", err
	}
	if err := vm.GetGlobal(module, resultGlobal); err != nil {
		// Globals holding nil are undefined.
		vm.Pop()
		return "nil", nil
	}
	s := formatValue(vm, -1)
	vm.Pop()
	vm.PushNull()
	if err := vm.SetGlobal(module, resultGlobal); err != nil {
		return "", err
	}
	return s, nil
}

// formatValue formats the value at slot the way the Lua REPL prints it.
func formatValue(vm *luavm.VM, slot int) string {
	switch tp := vm.Type(slot); tp {
	case luavm.TypeNil:
		return "nil"
	case luavm.TypeBoolean:
		b, _ := vm.GetBoolean(slot)
		return strconv.FormatBool(b)
	case luavm.TypeNumber:
		n, _ := vm.GetNumber(slot)
		return strconv.FormatFloat(n, 'g', -1, 64)
	case luavm.TypeString:
		s, _ := vm.GetString(slot)
		return s.String()
	default:
		return tp.String()
	}
}
