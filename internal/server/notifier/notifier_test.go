package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func received(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

func TestNotifier_Subscribe_Unsubscribe(t *testing.T) {
	n := New[int64]()

	ch := n.Subscribe(1)
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Len())

	n.Unsubscribe(ch)
	assert.Equal(t, 0, n.Len())

	_, open := <-ch
	assert.False(t, open, "unsubscribe closes the channel")
}

func TestNotifier_NotifyIsKeyed(t *testing.T) {
	n := New[int64]()

	one := n.Subscribe(1)
	two := n.Subscribe(2)
	defer n.Unsubscribe(one)
	defer n.Unsubscribe(two)

	n.Notify(1)

	assert.True(t, received(one))
	assert.False(t, received(two))
}

func TestNotifier_Broadcast(t *testing.T) {
	n := New[string]()

	a := n.Subscribe("a")
	b := n.Subscribe("b")
	defer n.Unsubscribe(a)
	defer n.Unsubscribe(b)

	n.Broadcast()

	assert.True(t, received(a))
	assert.True(t, received(b))
}

func TestNotifier_PingsCoalesce(t *testing.T) {
	n := New[int64]()
	ch := n.Subscribe(7)
	defer n.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for range 10 {
			n.Notify(7)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Notify blocked on a full channel")
	}

	assert.True(t, received(ch))
	assert.False(t, received(ch), "pending pings collapse into one")
}

func TestNotifier_ConcurrentAccess(t *testing.T) {
	n := New[int64]()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(key int64) {
			defer wg.Done()
			ch := n.Subscribe(key)
			n.Notify(key)
			n.Broadcast()
			n.Unsubscribe(ch)
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 0, n.Len())
}
