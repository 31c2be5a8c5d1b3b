// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/tailscale/hujson"
	"zombiezen.com/go/luavm"
)

type globalConfig struct {
	Debug                  bool     `json:"debug"`
	StartingStackSize      int      `json:"startingStackSize"`
	FirstGCCollectionPoint int      `json:"firstGCCollectionPoint"`
	HeapGrowRate           int      `json:"heapGrowRate"`
	Path                   []string `json:"path"`
	CacheDB                string   `json:"cacheDB"`
}

// defaultGlobalConfig returns the configuration used
// before any files or environment variables are read.
func defaultGlobalConfig() *globalConfig {
	g := &globalConfig{
		StartingStackSize: 1000,
		HeapGrowRate:      2,
		Path:              []string{"."},
	}
	if cd := cacheDir(); cd != "" {
		g.CacheDB = filepath.Join(cd, "luavm", "modules.db")
	}
	return g
}

// mergeEnvironment applies LUAVM_PATH and LUAVM_CACHE.
// LUAVM_PATH is a list of directories appended to the search path.
// An empty LUAVM_CACHE disables the bytecode cache.
func (g *globalConfig) mergeEnvironment() {
	for _, dir := range filepath.SplitList(os.Getenv("LUAVM_PATH")) {
		if dir != "" {
			g.Path = append(g.Path, dir)
		}
	}
	if path, ok := os.LookupEnv("LUAVM_CACHE"); ok {
		g.CacheDB = path
	}
}

func (g *globalConfig) mergeFiles(paths iter.Seq[string]) error {
	for path := range paths {
		huJSONData, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		jsonData, err := hujson.Standardize(huJSONData)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
		if err := jsonv2.Unmarshal(jsonData, g, jsonv2.RejectUnknownMembers(false)); err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
	}
	return nil
}

// UnmarshalJSONFrom unmarshals the configuration object from the JSON decoder,
// merging any fields in the JSON object with existing values.
// Search path entries are appended.
func (g *globalConfig) UnmarshalJSONFrom(in *jsontext.Decoder) error {
	tok, err := in.ReadToken()
	if err != nil {
		return err
	}
	if got := tok.Kind(); got != '{' {
		return fmt.Errorf("config must be an object not a %v", got)
	}

	for {
		keyToken, err := in.ReadToken()
		if err != nil {
			return err
		}
		switch kind := keyToken.Kind(); kind {
		case '}':
			return nil
		case '"':
			// Keep going.
		default:
			return fmt.Errorf("unexpected non-string key (%v) in object", kind)
		}

		switch k := keyToken.String(); k {
		case "debug":
			if err := jsonv2.UnmarshalDecode(in, &g.Debug); err != nil {
				return fmt.Errorf("unmarshal config.debug: %w", err)
			}
		case "startingStackSize":
			if err := jsonv2.UnmarshalDecode(in, &g.StartingStackSize); err != nil {
				return fmt.Errorf("unmarshal config.startingStackSize: %w", err)
			}
		case "firstGCCollectionPoint":
			if err := jsonv2.UnmarshalDecode(in, &g.FirstGCCollectionPoint); err != nil {
				return fmt.Errorf("unmarshal config.firstGCCollectionPoint: %w", err)
			}
		case "heapGrowRate":
			if err := jsonv2.UnmarshalDecode(in, &g.HeapGrowRate); err != nil {
				return fmt.Errorf("unmarshal config.heapGrowRate: %w", err)
			}
		case "path":
			var dirs []string
			if err := jsonv2.UnmarshalDecode(in, &dirs); err != nil {
				return fmt.Errorf("unmarshal config.path: %w", err)
			}
			g.Path = append(g.Path, dirs...)
		case "cacheDB":
			if err := jsonv2.UnmarshalDecode(in, &g.CacheDB); err != nil {
				return fmt.Errorf("unmarshal config.cacheDB: %w", err)
			}
		default:
			if reject, _ := jsonv2.GetOption(in.Options(), jsonv2.RejectUnknownMembers); reject {
				return fmt.Errorf("unmarshal config: unknown field %q", k)
			}
			if err := in.SkipValue(); err != nil {
				return err
			}
		}
	}
}

func (g *globalConfig) validate() error {
	if g.StartingStackSize < 0 {
		return fmt.Errorf("stack size %d is negative", g.StartingStackSize)
	}
	if g.FirstGCCollectionPoint < 0 {
		return fmt.Errorf("first collection point %d is negative", g.FirstGCCollectionPoint)
	}
	if g.HeapGrowRate < 0 {
		return fmt.Errorf("heap grow rate %d is negative", g.HeapGrowRate)
	}
	if len(g.Path) == 0 {
		return fmt.Errorf("module search path is empty")
	}
	return nil
}

// conf returns the runtime configuration without callbacks.
func (g *globalConfig) conf() *luavm.Conf {
	return luavm.DefaultConf().
		StartingStackSize(g.StartingStackSize).
		FirstGCCollectionPoint(g.FirstGCCollectionPoint).
		HeapGrowRate(g.HeapGrowRate)
}
