// headless_client.go: Minimal host client driving ticks and state without a UI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is the length of one simulation tick.
const DefaultTickInterval = 600 * time.Millisecond

// HeadlessClient is a client with no rendering or real input devices. It
// posts a GameTick per interval, counts idle ticks and keeps the current world.
type HeadlessClient struct {
	bus      Bus
	interval time.Duration
	logger   Logger

	mu            sync.Mutex
	tick          int64
	state         GameState
	world         int
	keyboardIdle  int
	mouseIdle     int
	pressed       map[KeyCode]bool
	changedWorlds []WorldDescriptor
}

// NewHeadlessClient creates a client connected to world.
func NewHeadlessClient(bus Bus, interval time.Duration, world int, logger Logger) *HeadlessClient {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &HeadlessClient{
		bus:      bus,
		interval: interval,
		world:    world,
		logger:   NewLogger(logger).With("component", "headless_client"),
		pressed:  make(map[KeyCode]bool),
	}
}

// Run reaches the login screen and posts ticks until ctx is done.
func (c *HeadlessClient) Run(ctx context.Context) error {
	c.SetState(GameStateStarting)
	c.SetState(GameStateLoginScreen)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick advances one tick and posts GameTick.
func (c *HeadlessClient) Tick() {
	c.mu.Lock()
	c.tick++
	c.keyboardIdle++
	c.mouseIdle++
	tick := c.tick
	c.mu.Unlock()

	c.bus.Post(GameTick{Tick: tick})
}

// SetState changes the game state and posts GameStateChanged.
func (c *HeadlessClient) SetState(state GameState) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed {
		c.logger.Debug("Game state changed", "state", state.String())
		c.bus.Post(GameStateChanged{State: state})
	}
}

// State returns the current game state.
func (c *HeadlessClient) State() GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// KeyboardIdleTicks returns the ticks since the last key event.
func (c *HeadlessClient) KeyboardIdleTicks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyboardIdle
}

// MouseIdleTicks returns the ticks since the last mouse movement.
func (c *HeadlessClient) MouseIdleTicks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mouseIdle
}

// MoveMouse resets the mouse idle counter.
func (c *HeadlessClient) MoveMouse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mouseIdle = 0
}

// Press holds key down and resets the keyboard idle counter.
func (c *HeadlessClient) Press(key KeyCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pressed[key] = true
	c.keyboardIdle = 0
}

// Release lets key go and resets the keyboard idle counter.
func (c *HeadlessClient) Release(key KeyCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pressed, key)
	c.keyboardIdle = 0
}

// World returns the current world id.
func (c *HeadlessClient) World() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.world
}

// CreateWorld returns an empty descriptor for ChangeWorld.
func (c *HeadlessClient) CreateWorld() *WorldDescriptor {
	return &WorldDescriptor{Types: WorldTypeSet{}}
}

// ChangeWorld switches to world and records the change.
func (c *HeadlessClient) ChangeWorld(world *WorldDescriptor) {
	if world == nil {
		return
	}
	c.mu.Lock()
	c.world = world.ID
	c.changedWorlds = append(c.changedWorlds, *world)
	c.mu.Unlock()
	c.logger.Info("World changed", "world", world.ID, "address", world.Address)
}

// WorldChanges returns every world applied through ChangeWorld.
func (c *HeadlessClient) WorldChanges() []WorldDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WorldDescriptor(nil), c.changedWorlds...)
}
