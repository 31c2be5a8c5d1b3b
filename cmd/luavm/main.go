// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

// luavm runs Lua programs in an isolated module runtime.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"zombiezen.com/go/bass/sigterm"
	"zombiezen.com/go/log"
)

func main() {
	rootCommand := &cobra.Command{
		Use:           "luavm",
		Short:         "Lua module runtime",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := defaultGlobalConfig()
	configErr := g.mergeFiles(configFiles())
	g.mergeEnvironment()

	showDebug := rootCommand.PersistentFlags().Bool("debug", false, "show debugging output")
	var includeDirs []string
	rootCommand.PersistentFlags().StringArrayVarP(&includeDirs, "include", "I", nil, "add `dir`ectory to the module search path")
	addRuntimeFlags(rootCommand.PersistentFlags(), g)

	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(g.Debug || *showDebug)
		if configErr != nil {
			return configErr
		}
		g.Path = append(g.Path, includeDirs...)
		return g.validate()
	}

	rootCommand.AddCommand(
		newRunCommand(g),
		newEvalCommand(g),
		newREPLCommand(g),
		newCompileCommand(g),
		newDisasmCommand(g),
		newCacheCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), sigterm.Signals()...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showDebug)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

func addRuntimeFlags(fset *pflag.FlagSet, g *globalConfig) {
	fset.StringVar(&g.CacheDB, "cache", g.CacheDB, "`path` to bytecode cache database (empty disables the cache)")
	fset.IntVar(&g.StartingStackSize, "stack-size", g.StartingStackSize, "number of stack `slots` available to the host")
	fset.IntVar(&g.FirstGCCollectionPoint, "gc-start", g.FirstGCCollectionPoint, "defer garbage collection until `bytes` are in use")
	fset.IntVar(&g.HeapGrowRate, "heap-grow-rate", g.HeapGrowRate, "heap growth `factor` between collections")
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "luavm: ", log.StdFlags, nil),
		})
	})
}
