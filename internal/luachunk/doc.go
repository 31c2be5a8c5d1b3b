// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

// Package luachunk decodes Lua 5.4 binary chunks
// and formats them as listings like those of luac -l.
package luachunk
