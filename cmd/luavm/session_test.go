// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"zombiezen.com/go/log/testlog"
	"zombiezen.com/go/luavm"
	"zombiezen.com/go/luavm/internal/testcontext"
)

func TestMain(m *testing.M) {
	testlog.Main(nil)
	os.Exit(m.Run())
}

func TestImporter(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "plain.lua"), []byte("value = 1\n"))
	writeTestFile(t, filepath.Join(dir, "sub", "nested.lua"), []byte("value = 2\n"))
	writeTestFile(t, filepath.Join(dir, "pkg", "init.lua"), []byte("value = 3\n"))
	writeTestFile(t, filepath.Join(dir, "precompiled.luac"), compileTestSource(t, "precompiled.lua", "value = 4\n"))
	writeTestFile(t, filepath.Join(dir, "packed.lua.bz2"), bzip2Data(t, []byte("value = 5\n")))

	const script = `import "plain"; import "sub.nested"; import "pkg"
import "precompiled"; import "packed"; import "host"
total = plain.value + nested.value + pkg.value + precompiled.value + packed.value + host.nargs()
assert(host.arg(2) == "b")
assert(host.arg(3) == nil)
host.log.debug("imports done")
`
	for _, useCache := range []bool{false, true} {
		name := "NoCache"
		if useCache {
			name = "Cache"
		}
		t.Run(name, func(t *testing.T) {
			ctx, cancel := testcontext.New(t)
			defer cancel()

			g := &globalConfig{Path: []string{filepath.Join(dir, "missing"), dir}}
			if useCache {
				g.CacheDB = filepath.Join(t.TempDir(), "cache.db")
			}
			sess := g.newSession(ctx, []string{"a", "b"})
			defer sess.close(ctx)

			if err := sess.vm.EvalString("main.lua", script); err != nil {
				t.Fatal(err)
			}
			got, err := evalExpression(sess.vm, "(test)", luavm.MainModule, "total")
			if err != nil {
				t.Fatal(err)
			}
			if want := "17"; got != want {
				t.Errorf("total = %s; want %s", got, want)
			}

			err = sess.vm.EvalString("main.lua", `import "nope"`)
			if want := "module 'nope' not found"; err == nil || !strings.Contains(err.Error(), want) {
				t.Errorf("import \"nope\" = %v; want error containing %q", err, want)
			}

			if useCache {
				_, found, err := sess.cache.Get(ctx, filepath.Join(dir, "plain.lua"), []byte("value = 1\n"))
				if err != nil {
					t.Fatal(err)
				}
				if !found {
					t.Error("plain.lua not cached after import")
				}
			}
		})
	}
}

func TestImporterErrors(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "broken.lua"), []byte("value = = 1\n"))
	writeTestFile(t, filepath.Join(dir, "nul.lua"), []byte("value = 1\x00\n"))

	g := &globalConfig{Path: []string{dir}, CacheDB: filepath.Join(t.TempDir(), "cache.db")}
	sess := g.newSession(ctx, nil)
	defer sess.close(ctx)

	tests := []struct {
		module  string
		wantMsg string
	}{
		{"broken", "cannot import module 'broken'"},
		{"nul", "contains NUL byte"},
		{"../escape", "invalid module name"},
	}
	for _, test := range tests {
		err := sess.vm.EvalString("main.lua", "import "+luaQuote(test.module))
		if !luavm.IsRuntime(err) || !strings.Contains(err.Error(), test.wantMsg) {
			t.Errorf("import %q = %v; want runtime error containing %q", test.module, err, test.wantMsg)
		}
	}
}

func TestDecompressChunk(t *testing.T) {
	want := []byte("print('hi')\n")
	got, err := decompressChunk("x.lua.bz2", bzip2Data(t, want))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("decompressChunk(bzip2) = %q; want %q", got, want)
	}
	got, err = decompressChunk("x.lua", want)
	if err != nil || !bytes.Equal(got, want) {
		t.Errorf("decompressChunk(plain) = %q, %v; want %q, <nil>", got, err, want)
	}
	if _, err := decompressChunk("x.lua", []byte(bzip2Magic+"garbage")); err == nil {
		t.Error("decompressChunk(bad bzip2) did not return an error")
	}
}

func writeTestFile(tb testing.TB, path string, data []byte) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		tb.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o666); err != nil {
		tb.Fatal(err)
	}
}

func compileTestSource(tb testing.TB, path, src string) []byte {
	tb.Helper()
	nvm := luavm.New(nil)
	defer nvm.Close()
	chunk, err := nvm.Compile(path, src)
	if err != nil {
		tb.Fatal(err)
	}
	return chunk
}

func bzip2Data(tb testing.TB, data []byte) []byte {
	tb.Helper()
	buf := new(bytes.Buffer)
	w, err := bzip2.NewWriter(buf, nil)
	if err != nil {
		tb.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		tb.Fatal(err)
	}
	if err := w.Close(); err != nil {
		tb.Fatal(err)
	}
	return buf.Bytes()
}

func luaQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
