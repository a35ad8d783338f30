package userlock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := New()

	const goroutines = 50
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("51999999999")
			defer unlock()
			// Unsynchronized increment; the race detector flags any overlap.
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines, counter)
}

func TestDifferentKeysDoNotBlockEachOther(t *testing.T) {
	m := New()

	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestEntriesAreReleased(t *testing.T) {
	m := New()

	unlock := m.Lock("a")
	unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks, "released keys do not accumulate")
}
