// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"
	"zombiezen.com/go/luavm/internal/modcache"
)

func newCacheCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:   "cache COMMAND",
		Short: "manage the bytecode cache",
	}
	c.AddCommand(newCachePruneCommand(g))
	return c
}

func newCachePruneCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "prune [options]",
		Short:                 "remove cached bytecode that has not been used recently",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	olderThan := c.Flags().Duration("older-than", 30*24*time.Hour, "remove entries unused for `duration`")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runCachePrune(cmd.Context(), g, *olderThan)
	}
	return c
}

func runCachePrune(ctx context.Context, g *globalConfig, olderThan time.Duration) error {
	if g.CacheDB == "" {
		return fmt.Errorf("cache disabled")
	}
	cache, err := modcache.Open(g.CacheDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Errorf(ctx, "%v", err)
		}
	}()
	n, err := cache.Prune(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("removed %d cached chunks\n", n)
	return nil
}
