// eventbus.go: Synchronous typed event bus
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Bus is the host event bus consumed by the lifecycle manager and the schedulers.
type Bus interface {
	// Post delivers event to every handler subscribed to its dynamic type.
	Post(event any)
	// SubscribeFunc registers fn for events of exactly eventType.
	SubscribeFunc(eventType reflect.Type, fn func(any)) (unsubscribe func())
}

// Subscribe registers a typed handler on bus.
//
//	unsubscribe := pluginhost.Subscribe(bus, func(e pluginhost.GameTick) { ... })
func Subscribe[E any](bus Bus, fn func(E)) (unsubscribe func()) {
	eventType := reflect.TypeOf((*E)(nil)).Elem()
	return bus.SubscribeFunc(eventType, func(event any) {
		fn(event.(E))
	})
}

type subscription struct {
	id uint64
	fn func(any)
}

// EventBus dispatches events on the poster's goroutine. A panicking handler is
// logged and does not prevent delivery to the remaining handlers.
type EventBus struct {
	logger Logger
	nextID atomic.Uint64

	mu       sync.RWMutex
	handlers map[reflect.Type][]subscription
}

// NewEventBus creates an empty bus.
func NewEventBus(logger Logger) *EventBus {
	return &EventBus{
		logger:   NewLogger(logger).With("component", "event_bus"),
		handlers: make(map[reflect.Type][]subscription),
	}
}

// SubscribeFunc registers fn for events of exactly eventType.
func (b *EventBus) SubscribeFunc(eventType reflect.Type, fn func(any)) func() {
	id := b.nextID.Add(1)

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.handlers[eventType]
			for i, s := range subs {
				if s.id == id {
					b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Post delivers event to its subscribers in registration order.
func (b *EventBus) Post(event any) {
	if event == nil {
		return
	}
	eventType := reflect.TypeOf(event)

	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.dispatch(eventType, s, event)
	}
}

func (b *EventBus) dispatch(eventType reflect.Type, s subscription, event any) {
	defer withComponentRecover(b.logger, "event_handler:"+eventType.String())()
	s.fn(event)
}

// HandlerCount returns the number of handlers subscribed to eventType.
func (b *EventBus) HandlerCount(eventType reflect.Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
