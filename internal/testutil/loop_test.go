package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartLoopStopsOnCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	stop := StartLoop(t, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return errors.New("stopped")
	})

	WaitForResult(t, started, DefaultTestTimeout, "loop did not start")
	err := stop()
	require.Error(t, err)
	assert.Equal(t, "stopped", err.Error())
}
