package syncs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryAcquire(t *testing.T) {
	sem := NewSemaphore(1)
	if !sem.TryAcquire() {
		t.Fatal("should acquire")
	}
	if sem.TryAcquire() {
		t.Fatal("should not acquire twice")
	}
	if sem.InUse() != 1 {
		t.Fatalf("got %d", sem.InUse())
	}
	sem.Release()
	if !sem.TryAcquire() {
		t.Fatal("should acquire after release")
	}
	sem.Release()
}

func TestTryAcquireConcurrent(t *testing.T) {
	sem := NewSemaphore(1)
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if sem.TryAcquire() {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if n := wins.Load(); n != 1 {
		t.Fatalf("got %d", n)
	}
}

func TestAcquireContext(t *testing.T) {
	sem := NewSemaphore(1)
	sem.Acquire()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sem.AcquireContext(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	sem.Release()
	if err := sem.AcquireContext(context.Background()); err != nil {
		t.Fatal(err)
	}
}
