// Package testutil provides helpers for tests of long-running loops.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTestTimeout bounds how long a stopped loop may take to return.
const DefaultTestTimeout = 5 * time.Second

// StartLoop runs fn in a goroutine with a cancellable child of t.Context().
// The returned stop function cancels the context and waits for fn, failing
// the test if fn does not return within DefaultTestTimeout.
func StartLoop(t *testing.T, fn func(ctx context.Context) error) (stop func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	return func() error {
		t.Helper()
		cancel()
		return WaitForResult(t, done, DefaultTestTimeout, "loop did not stop after cancel")
	}
}

// WaitForResult waits for a value on ch or fails the test after timeout.
func WaitForResult[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.FailNow(t, msg, "timed out after %v", timeout)
		var zero T
		return zero
	}
}
