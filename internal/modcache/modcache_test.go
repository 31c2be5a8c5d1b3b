// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package modcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"zombiezen.com/go/log/testlog"
	"zombiezen.com/go/luavm/internal/testcontext"
)

func TestMain(m *testing.M) {
	testlog.Main(nil)
	os.Exit(m.Run())
}

func TestCache(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	cache, err := Open(filepath.Join(t.TempDir(), "sub", "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			t.Error(err)
		}
	}()

	const path = "/src/foo.lua"
	source := []byte("x = 1\n")
	chunk := []byte("\x1bLua fake chunk")

	if _, found, err := cache.Get(ctx, path, source); err != nil || found {
		t.Fatalf("cache.Get(ctx, %q, ...) on empty cache = _, %t, %v; want _, false, <nil>", path, found, err)
	}
	if err := cache.Put(ctx, path, source, chunk); err != nil {
		t.Fatal(err)
	}
	got, found, err := cache.Get(ctx, path, source)
	if err != nil || !found {
		t.Fatalf("cache.Get(ctx, %q, ...) = _, %t, %v; want _, true, <nil>", path, found, err)
	}
	if diff := cmp.Diff(chunk, got); diff != "" {
		t.Errorf("chunk (-want +got):\n%s", diff)
	}

	if _, found, err := cache.Get(ctx, path, []byte("x = 2\n")); err != nil || found {
		t.Errorf("cache.Get(ctx, %q, <changed source>) = _, %t, %v; want _, false, <nil>", path, found, err)
	}

	newChunk := []byte("\x1bLua other chunk")
	if err := cache.Put(ctx, path, []byte("x = 2\n"), newChunk); err != nil {
		t.Fatal(err)
	}
	if _, found, err := cache.Get(ctx, path, source); err != nil || found {
		t.Errorf("cache.Get(ctx, %q, <old source>) after replacement = _, %t, %v; want _, false, <nil>", path, found, err)
	}
}

func TestPrune(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	cache, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if err := cache.Put(ctx, "a.lua", []byte("a"), []byte("A")); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)
	if err := cache.Put(ctx, "b.lua", []byte("b"), []byte("B")); err != nil {
		t.Fatal(err)
	}

	n, err := cache.Prune(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("cache.Prune(...) = %d; want 1", n)
	}
	if _, found, _ := cache.Get(ctx, "a.lua", []byte("a")); found {
		t.Error("a.lua still in cache after prune")
	}
	if _, found, _ := cache.Get(ctx, "b.lua", []byte("b")); !found {
		t.Error("b.lua missing from cache after prune")
	}
}
