package audio

import (
	"context"
	"sync"
)

// Value is an observable holding the latest element. New subscribers receive
// the current element first. Slow subscribers only ever see the newest element.
type Value[T any] struct {
	mu    sync.Mutex
	set   bool
	cur   T
	equal func(a, b T) bool
	subs  map[chan T]struct{}
}

// NewValue builds an empty observable. equal suppresses consecutive duplicates.
func NewValue[T any](equal func(a, b T) bool) *Value[T] {
	return &Value[T]{equal: equal, subs: make(map[chan T]struct{})}
}

// Get returns the latest element and whether one was ever published.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur, v.set
}

// Set publishes val unless it equals the latest element. It reports whether subscribers were notified.
func (v *Value[T]) Set(val T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.set && v.equal != nil && v.equal(v.cur, val) {
		return false
	}
	v.publishLocked(val)
	return true
}

// Publish emits val even when it equals the latest element.
func (v *Value[T]) Publish(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.publishLocked(val)
}

func (v *Value[T]) publishLocked(val T) {
	v.cur = val
	v.set = true
	for ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		ch <- val
	}
}

// Subscribe streams elements until ctx is cancelled, then closes the channel.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	v.mu.Lock()
	if v.set {
		ch <- v.cur
	}
	v.subs[ch] = struct{}{}
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.subs, ch)
		close(ch)
		v.mu.Unlock()
	}()

	return ch
}
