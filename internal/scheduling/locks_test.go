package scheduling

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestBookingLocksSerializeSameKey(t *testing.T) {
	locks := NewBookingLocks(zerolog.Nop())

	const workers = 16
	var inCritical, maxSeen int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := locks.Acquire(context.Background(), "acct-1", "tech-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer release()

			mu.Lock()
			inCritical++
			if inCritical > maxSeen {
				maxSeen = inCritical
			}
			mu.Unlock()

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder of the lock, saw %d", maxSeen)
	}
}

func TestBookingLocksIndependentKeys(t *testing.T) {
	locks := NewBookingLocks(zerolog.Nop())

	releaseA, err := locks.Acquire(context.Background(), "acct-1", "tech-a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	// A different technician's lock must not block.
	done := make(chan struct{})
	go func() {
		releaseB, err := locks.Acquire(context.Background(), "acct-1", "tech-b")
		if err != nil {
			t.Errorf("acquire b: %v", err)
		} else {
			releaseB()
		}
		close(done)
	}()

	<-done
}

func TestBookingLocksReacquireAfterRelease(t *testing.T) {
	locks := NewBookingLocks(zerolog.Nop())

	release, err := locks.Acquire(context.Background(), "acct-1", "tech-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()

	release, err = locks.Acquire(context.Background(), "acct-1", "tech-1")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	release()
}
