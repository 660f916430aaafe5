package coordination

import "sync"

// subscriptionBuffer is the per-observer slack before a slow observer starts
// missing updates. Delivery stays at-most-once either way.
const subscriptionBuffer = 32

// Subscription is one observer's attachment to a broadcaster.
type Subscription[T any] struct {
	ch     chan T
	cancel func()
	once   sync.Once
}

// Updates returns the ordered update stream. The channel closes when the
// subscription is cancelled or the broadcaster shuts down.
func (s *Subscription[T]) Updates() <-chan T {
	return s.ch
}

// Cancel detaches the observer. Idempotent.
func (s *Subscription[T]) Cancel() {
	s.once.Do(s.cancel)
}

// broadcaster fans values out to a dynamic set of subscriptions. When the
// last subscription detaches the teardown hook fires, so nothing keeps a
// stream alive that nobody is watching.
type broadcaster[T any] struct {
	mu                sync.Mutex
	subscriptions     map[*Subscription[T]]struct{}
	onLastUnsubscribe func()
	closed            bool
}

func newBroadcaster[T any](onLastUnsubscribe func()) *broadcaster[T] {
	return &broadcaster[T]{
		subscriptions:     map[*Subscription[T]]struct{}{},
		onLastUnsubscribe: onLastUnsubscribe,
	}
}

func (b *broadcaster[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{ch: make(chan T, subscriptionBuffer)}
	sub.cancel = func() { b.unsubscribe(sub) }

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}

	b.subscriptions[sub] = struct{}{}
	return sub
}

func (b *broadcaster[T]) unsubscribe(sub *Subscription[T]) {
	b.mu.Lock()
	if _, ok := b.subscriptions[sub]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscriptions, sub)
	close(sub.ch)
	wasLast := len(b.subscriptions) == 0 && !b.closed
	onLastUnsubscribe := b.onLastUnsubscribe
	b.mu.Unlock()

	if wasLast && onLastUnsubscribe != nil {
		onLastUnsubscribe()
	}
}

// Publish delivers value to every current subscription in subscribe order
// per observer. Observers that cannot keep up miss the value.
func (b *broadcaster[T]) Publish(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for sub := range b.subscriptions {
		select {
		case sub.ch <- value:
		default:
		}
	}
}

// Close detaches every subscription without firing the teardown hook; the
// owner is already tearing down.
func (b *broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for sub := range b.subscriptions {
		delete(b.subscriptions, sub)
		close(sub.ch)
	}
}

// HasSubscribers reports whether anyone is still attached.
func (b *broadcaster[T]) HasSubscribers() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscriptions) > 0
}
