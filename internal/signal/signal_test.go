//go:build !windows

package signal

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSignalCancel_ParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithSignalCancel(parent)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled with parent")
	}
}

func TestWithSignals_CancelsOnSignal(t *testing.T) {
	ctx, cancel := withSignals(context.Background(), syscall.SIGUSR1)
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by signal")
	}
}

func TestBlockSignals_DefersCancel(t *testing.T) {
	BlockSignals()
	BlockSignals()

	ctx, cancel := withSignals(context.Background(), syscall.SIGUSR2)
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR2))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pending) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, ctx.Err())

	UnblockSignals()
	assert.NoError(t, ctx.Err(), "still blocked by outer section")

	UnblockSignals()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestUnblockSignals_Unbalanced(t *testing.T) {
	assert.NotPanics(t, func() {
		UnblockSignals()
		UnblockSignals()
	})
}
