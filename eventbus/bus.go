// Package eventbus is a process-scoped fan-out of rtypes.NodeEvent values to
// any number of independent subscribers, with drop-on-disconnect semantics
// (component B). Every subscriber cursor is unbounded: a live subscriber
// never loses an event no matter how far it falls behind, matching the
// original's unbounded channel behind the NodeEvent bus. It is also reused
// internally by the reference transport (component J) to fan out
// announce/link/data events, where the bus's unbounded queue simply means
// the reference implementation never needs to exercise the Lagged case the
// real transport's broadcast streams are specified to tolerate.
/*
 * Copyright (c) 2024-2026, FreeTAKTeam. All rights reserved.
 */
package eventbus

import "sync"

// Bus fans events out to subscribers. The zero value is not usable; use New.
type Bus[T any] struct {
	mu   sync.Mutex
	subs map[*Subscription[T]]struct{}
}

func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Subscribe returns a cursor that yields events emitted strictly after this
// call, in emission order. The caller must eventually call Close: until then
// the bus keeps the subscription attached and keeps queueing events for it.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		owner:  b,
		signal: make(chan struct{}, 1),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Emit clones the event once per live subscriber, appending it to that
// subscriber's unbounded queue. Non-blocking: the only subscriber dropped
// is one whose Close has already run. No ordering guarantee is made across
// subscribers, only within each subscriber's own stream.
func (b *Bus[T]) Emit(event T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.closed.Load() {
			delete(b.subs, sub)
			continue
		}
		sub.push(event)
	}
}

// unsubscribe removes sub from the live set; called by Subscription.Close.
func (b *Bus[T]) unsubscribe(sub *Subscription[T]) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// SubscriberCount reports the number of currently attached subscribers.
// Diagnostic only; not part of the delivery contract.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
