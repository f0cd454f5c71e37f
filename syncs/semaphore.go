package syncs

import "context"

// Semaphore is a counting semaphore backed by a buffered channel.
// A Semaphore of capacity 1 is a non-reentrant admission slot.
type Semaphore chan bool

func NewSemaphore(n int) Semaphore {
	return make(chan bool, n)
}

func (s Semaphore) Acquire() {
	s <- true
}

func (s Semaphore) AcquireContext(ctx context.Context) error {
	select {
	case s <- true:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a unit without blocking and reports whether it did.
func (s Semaphore) TryAcquire() bool {
	select {
	case s <- true:
		return true
	default:
		return false
	}
}

func (s Semaphore) Release() {
	<-s
}

// InUse reports how many units are currently held.
func (s Semaphore) InUse() int {
	return len(s)
}
