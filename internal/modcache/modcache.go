// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

// Package modcache stores compiled module chunks in a SQLite database
// so that unchanged sources are not compiled again.
package modcache

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"zombiezen.com/go/log"
	"zombiezen.com/go/luavm/internal/lua54"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitemigration"
	"zombiezen.com/go/sqlite/sqlitex"
)

//go:embed sql
var rawSQLFiles embed.FS

func sqlFiles() fs.FS {
	fsys, err := fs.Sub(rawSQLFiles, "sql")
	if err != nil {
		panic(err)
	}
	return fsys
}

// Cache is a bytecode cache backed by a SQLite database.
// It is safe to use from multiple goroutines.
type Cache struct {
	pool *sqlitemigration.Pool
	now  func() time.Time
}

// Open opens the cache database at path, creating it if needed.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return nil, fmt.Errorf("open module cache: %v", err)
	}
	var schema sqlitemigration.Schema
	for i := 1; ; i++ {
		migration, err := fs.ReadFile(sqlFiles(), fmt.Sprintf("schema/%02d.sql", i))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("open module cache: read migrations: %v", err)
		}
		schema.Migrations = append(schema.Migrations, string(migration))
	}
	return &Cache{
		pool: sqlitemigration.NewPool(path, schema, sqlitemigration.Options{
			Flags:       sqlite.OpenCreate | sqlite.OpenReadWrite,
			PoolSize:    1,
			PrepareConn: prepareConn,
			OnError: func(err error) {
				log.Errorf(context.Background(), "Module cache %s: %v", path, err)
			},
		}),
		now: time.Now,
	}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode=wal;", nil); err != nil {
		return fmt.Errorf("enable write-ahead logging: %v", err)
	}
	return nil
}

// Close releases the database connections.
func (c *Cache) Close() error {
	return c.pool.Close()
}

// Get returns the chunk stored for path
// if it was compiled from the given source by the same runtime version.
func (c *Cache) Get(ctx context.Context, path string, source []byte) (_ []byte, found bool, err error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("get %s from module cache: %v", path, err)
	}
	defer c.pool.Put(conn)
	defer sqlitex.Save(conn)(&err)

	hash := sha256.Sum256(source)
	var chunk []byte
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "get.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":path":        path,
			":source_hash": hash[:],
			":version":     lua54.VersionNum,
		},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			chunk = make([]byte, stmt.GetLen("chunk"))
			stmt.GetBytes("chunk", chunk)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s from module cache: %v", path, err)
	}
	if !found {
		log.Debugf(ctx, "Module cache miss for %s", path)
		return nil, false, nil
	}
	log.Debugf(ctx, "Module cache hit for %s", path)
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "touch.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":path": path,
			":now":  c.now().Unix(),
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s from module cache: %v", path, err)
	}
	return chunk, true, nil
}

// Put stores the chunk compiled from source for path,
// replacing any previous entry.
func (c *Cache) Put(ctx context.Context, path string, source, chunk []byte) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("put %s in module cache: %v", path, err)
	}
	defer c.pool.Put(conn)

	hash := sha256.Sum256(source)
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "put.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":path":        path,
			":source_hash": hash[:],
			":version":     lua54.VersionNum,
			":chunk":       chunk,
			":now":         c.now().Unix(),
		},
	})
	if err != nil {
		return fmt.Errorf("put %s in module cache: %v", path, err)
	}
	return nil
}

// Prune removes entries that have not been used since the given time.
// It returns the number of entries removed.
func (c *Cache) Prune(ctx context.Context, before time.Time) (int, error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune module cache: %v", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "prune.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":before": before.Unix(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("prune module cache: %v", err)
	}
	return conn.Changes(), nil
}
