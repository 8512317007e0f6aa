// Package notifier provides a keyed broadcast mechanism for SSE updates.
package notifier

import "sync"

// Notifier pings listeners subscribed to a key. A ping carries no payload:
// listeners re-query the store when they receive one. Each listener holds
// at most one pending ping, so a slow listener coalesces pings instead of
// blocking the publisher.
type Notifier[K comparable] struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]K
}

// New creates a new Notifier instance.
func New[K comparable]() *Notifier[K] {
	return &Notifier[K]{
		listeners: make(map[chan struct{}]K),
	}
}

// Subscribe returns a channel that receives a ping whenever key is
// notified. The caller must call Unsubscribe when done.
func (n *Notifier[K]) Subscribe(key K) chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.listeners[ch] = key
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier[K]) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Notify pings the listeners of key. It never blocks.
func (n *Notifier[K]) Notify(key K) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch, k := range n.listeners {
		if k == key {
			ping(ch)
		}
	}
}

// Broadcast pings every listener.
func (n *Notifier[K]) Broadcast() {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		ping(ch)
	}
}

// Len returns the number of listeners.
func (n *Notifier[K]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

func ping(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
		// A ping is already pending.
	}
}
