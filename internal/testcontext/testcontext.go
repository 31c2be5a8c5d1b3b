// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

// Package testcontext provides contexts for tests.
package testcontext

import (
	"context"
	"testing"
	"time"

	"zombiezen.com/go/log/testlog"
)

// New returns a context that logs to the test,
// is canceled when the test finishes,
// and obeys the test's deadline if present.
func New(tb testing.TB) (context.Context, context.CancelFunc) {
	ctx := tb.Context()
	cancel := context.CancelFunc(func() {})
	if d, ok := deadline(tb); ok {
		ctx, cancel = context.WithDeadline(ctx, d)
	}
	return testlog.WithTB(ctx, tb), cancel
}

// WithTimeout is like [New], but the context is canceled after d
// or at the test's deadline, whichever comes first.
func WithTimeout(tb testing.TB, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := New(tb)
	ctx, cancelTimeout := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancelTimeout()
		cancel()
	}
}

func deadline(x any) (deadline time.Time, ok bool) {
	d, ok := x.(interface {
		Deadline() (deadline time.Time, ok bool)
	})
	if !ok {
		return time.Time{}, false
	}
	return d.Deadline()
}
