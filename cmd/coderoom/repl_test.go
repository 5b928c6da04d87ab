package main

import (
	"context"
	"sync"
	"testing"
)

func TestRunCancellerInterruptsActiveRun(t *testing.T) {
	var rc runCanceller

	ctx, cancel := context.WithCancel(context.Background())
	rc.set(cancel)
	rc.interrupt()

	select {
	case <-ctx.Done():
	default:
		t.Error("interrupt did not cancel the active run")
	}
}

func TestRunCancellerClearedIsNoOp(t *testing.T) {
	var rc runCanceller

	ctx, cancel := context.WithCancel(context.Background())
	rc.set(cancel)
	rc.clear()
	rc.interrupt()

	select {
	case <-ctx.Done():
		t.Error("interrupt fired a cancel that was already cleared")
	default:
	}
	cancel()
}

// Set/clear from one goroutine while another hammers interrupt; run with
// -race to verify the handoff is synchronized.
func TestRunCancellerConcurrentInterrupt(t *testing.T) {
	var rc runCanceller

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				rc.interrupt()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		_, cancel := context.WithCancel(context.Background())
		rc.set(cancel)
		rc.clear()
		cancel()
	}

	close(stop)
	wg.Wait()
}
