// Package signal turns SIGINT and SIGTERM into context cancellation.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mu         sync.Mutex
	blockCount int
	// pending holds cancels deferred while signals were blocked.
	pending []context.CancelFunc
)

// WithSignalCancel returns a context that is cancelled on SIGINT or SIGTERM.
// Call the returned cancel function to release the signal handler.
func WithSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	return withSignals(parent, syscall.SIGINT, syscall.SIGTERM)
}

func withSignals(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, sigs...)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			mu.Lock()
			if blockCount > 0 {
				pending = append(pending, cancel)
				mu.Unlock()
				return
			}
			mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// BlockSignals defers signal cancellation until the matching UnblockSignals,
// so a history write is not cut off halfway. Calls nest.
func BlockSignals() {
	mu.Lock()
	defer mu.Unlock()
	blockCount++
}

// UnblockSignals ends a BlockSignals section and runs any cancellation that
// arrived meanwhile.
func UnblockSignals() {
	mu.Lock()
	if blockCount > 0 {
		blockCount--
	}
	var run []context.CancelFunc
	if blockCount == 0 {
		run, pending = pending, nil
	}
	mu.Unlock()

	for _, cancel := range run {
		cancel()
	}
}
