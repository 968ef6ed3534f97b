// eventbus_test.go: Tests for the typed event bus
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus_DeliversByType(t *testing.T) {
	bus := NewEventBus(nil)

	var ticks []int64
	var states []GameState
	Subscribe(bus, func(e GameTick) { ticks = append(ticks, e.Tick) })
	Subscribe(bus, func(e GameStateChanged) { states = append(states, e.State) })

	bus.Post(GameTick{Tick: 1})
	bus.Post(GameStateChanged{State: GameStateLoggedIn})
	bus.Post(&GameTick{Tick: 2}) // pointer type has no subscribers
	bus.Post(nil)

	assert.Equal(t, []int64{1}, ticks)
	assert.Equal(t, []GameState{GameStateLoggedIn}, states)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(nil)
	tickType := reflect.TypeOf(GameTick{})

	var first, second int
	unsubscribe := Subscribe(bus, func(GameTick) { first++ })
	Subscribe(bus, func(GameTick) { second++ })
	assert.Equal(t, 2, bus.HandlerCount(tickType))

	bus.Post(GameTick{})
	unsubscribe()
	unsubscribe()
	bus.Post(GameTick{})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 1, bus.HandlerCount(tickType))
}

func TestEventBus_PanickingHandler(t *testing.T) {
	logger := NewTestLogger()
	bus := NewEventBus(logger)

	delivered := false
	Subscribe(bus, func(GameTick) { panic("boom") })
	Subscribe(bus, func(GameTick) { delivered = true })

	assert.NotPanics(t, func() { bus.Post(GameTick{}) })
	assert.True(t, delivered)
	assert.True(t, logger.HasMessage("ERROR", "Panic recovered"))
}

func TestEventBus_SubscribeDuringPost(t *testing.T) {
	bus := NewEventBus(nil)

	var late int
	Subscribe(bus, func(GameTick) {
		Subscribe(bus, func(GameTick) { late++ })
	})

	bus.Post(GameTick{})
	assert.Equal(t, 0, late)
	bus.Post(GameTick{})
	assert.Equal(t, 1, late)
}

func TestEventBus_ConcurrentPost(t *testing.T) {
	bus := NewEventBus(nil)

	var mu sync.Mutex
	count := 0
	Subscribe(bus, func(GameTick) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Post(GameTick{Tick: int64(j)})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, count)
}
