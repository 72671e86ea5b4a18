package service

import (
	"sync"
	"testing"
)

func TestUserLocks_SerializesSameUser(t *testing.T) {
	locks := newUserLocks()

	const goroutines = 16
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("u1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != goroutines {
		t.Fatalf("expected %d increments, got %d", goroutines, counter)
	}
}

func TestUserLocks_ShrinksWhenIdle(t *testing.T) {
	locks := newUserLocks()

	unlock := locks.lock("u1")
	unlock()

	locks.mu.Lock()
	remaining := len(locks.locks)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected empty lock table, got %d entries", remaining)
	}
}

func TestUserLocks_IndependentUsersDoNotBlock(t *testing.T) {
	locks := newUserLocks()

	unlockA := locks.lock("u1")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("u2")
		unlockB()
		close(done)
	}()

	<-done
}
