package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	// another key is not blocked
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.len())
	unlockB()

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("same key acquired twice")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	<-acquired
	assert.Eventually(t, func() bool { return k.len() == 0 }, time.Second, time.Millisecond)
}

func TestKeyedMutex_Counter(t *testing.T) {
	k := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("room")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Zero(t, k.len())
}
