// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsnet/compress/brotli"
	"github.com/dsnet/compress/bzip2"
)

const bzip2Magic = "BZh"

// readChunk reads a source file or binary chunk.
// bzip2 data is decompressed transparently,
// as is brotli data in a file ending in ".br".
// The path "-" reads standard input.
func readChunk(path string) ([]byte, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return decompressChunk(path, data)
}

func decompressChunk(path string, data []byte) ([]byte, error) {
	var r io.ReadCloser
	var err error
	switch {
	case bytes.HasPrefix(data, []byte(bzip2Magic)):
		r, err = bzip2.NewReader(bytes.NewReader(data), nil)
	case strings.HasSuffix(path, ".br"):
		r, err = brotli.NewReader(bytes.NewReader(data), nil)
	default:
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", path, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", path, err)
	}
	return out, nil
}

// chunkWriter writes a binary chunk to a file,
// optionally compressing it with bzip2.
type chunkWriter struct {
	f  *os.File
	bz *bzip2.Writer
}

func createChunk(path string, compress bool) (*chunkWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	cw := &chunkWriter{f: f}
	if compress {
		cw.bz, err = bzip2.NewWriter(f, &bzip2.WriterConfig{Level: bzip2.BestCompression})
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	return cw, nil
}

func (cw *chunkWriter) Write(p []byte) (int, error) {
	if cw.bz != nil {
		return cw.bz.Write(p)
	}
	return cw.f.Write(p)
}

func (cw *chunkWriter) Close() error {
	var bzErr error
	if cw.bz != nil {
		bzErr = cw.bz.Close()
	}
	fErr := cw.f.Close()
	if bzErr != nil {
		return fmt.Errorf("write %s: %v", cw.f.Name(), bzErr)
	}
	return fErr
}
