// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luavm

import (
	"errors"
	"fmt"
	"io"

	"zombiezen.com/go/luavm/internal/luachunk"
)

// DisassembleOptions is the set of parameters for [Disassemble].
type DisassembleOptions struct {
	// Full includes each function's constants, locals, and upvalues.
	Full bool
	// RawPC numbers instructions from 0 instead of 1.
	RawPC bool
}

// Disassemble writes a luac -l style listing of a binary chunk to w.
// A malformed chunk returns a [Deserialize] error
// and a chunk from another runtime version returns a [Version] error.
func Disassemble(w io.Writer, chunk []byte, opts *DisassembleOptions) error {
	f, err := luachunk.Decode(chunk)
	if err != nil {
		kind := Deserialize
		if errors.Is(err, luachunk.ErrVersionMismatch) {
			kind = Version
		}
		return &Error{Kind: kind, Message: err.Error()}
	}
	var listOpts luachunk.ListOptions
	if opts != nil {
		listOpts.Full = opts.Full
		listOpts.RawPC = opts.RawPC
	}
	if err := luachunk.List(w, f, &listOpts); err != nil {
		return fmt.Errorf("luavm: disassemble: %w", err)
	}
	return nil
}

// IsBinaryChunk reports whether code starts with the binary chunk signature.
func IsBinaryChunk(code []byte) bool {
	return len(code) >= len(luachunk.Signature) && string(code[:len(luachunk.Signature)]) == luachunk.Signature
}
