package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSessionLocksSerializeHolders(t *testing.T) {
	t.Parallel()

	locks := newSessionLocks()
	release, err := locks.acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		r, err := locks.acquire(context.Background(), "s1")
		if err != nil {
			t.Errorf("second acquire failed: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestSessionLocksIndependentSessions(t *testing.T) {
	t.Parallel()

	locks := newSessionLocks()
	r1, err := locks.acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("acquire a failed: %v", err)
	}
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := locks.acquire(ctx, "b")
	if err != nil {
		t.Fatalf("acquire b blocked behind a different session: %v", err)
	}
	r2()
}

func TestSessionLocksWaiterHonorsContext(t *testing.T) {
	t.Parallel()

	locks := newSessionLocks()
	release, err := locks.acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locks.acquire(ctx, "s1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestSessionLocksEntriesAreReclaimed(t *testing.T) {
	t.Parallel()

	locks := newSessionLocks()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				release, err := locks.acquire(context.Background(), "shared")
				if err != nil {
					t.Errorf("acquire failed: %v", err)
					return
				}
				release()
			}
		}()
	}
	wg.Wait()

	locks.mu.Lock()
	remaining := len(locks.locks)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected lock map to be empty, found %d entries", remaining)
	}
}

func TestSessionLocksCanceledWaiterDoesNotLeakEntry(t *testing.T) {
	t.Parallel()

	locks := newSessionLocks()
	release, err := locks.acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locks.acquire(ctx, "s1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Canceled, got %v", err)
	}

	release()

	locks.mu.Lock()
	remaining := len(locks.locks)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected lock map to be empty, found %d entries", remaining)
	}
}
