// idle_scheduler.go: Idle-triggered simulated input
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Idle threshold distribution, in ticks.
const (
	IdleThresholdStdDev = 8000
	IdleThresholdMin    = 1
	IdleThresholdMax    = 13000
)

// DrawIdleThreshold draws round(N(0,1) * 8000) clamped to [1, 13000].
func DrawIdleThreshold(r *rand.Rand) int {
	return idleThresholdFromSample(r.NormFloat64())
}

// idleThresholdFromSample scales a standard normal sample. The clamp is done
// in float64 so that NaN and infinities land on a bound.
func idleThresholdFromSample(z float64) int {
	v := math.Round(z * IdleThresholdStdDev)
	if !(v >= IdleThresholdMin) {
		return IdleThresholdMin
	}
	if v > IdleThresholdMax {
		return IdleThresholdMax
	}
	return int(v)
}

// IdleSchedulerConfig carries the collaborators of an IdleScheduler.
type IdleSchedulerConfig struct {
	Input  InputState
	Keys   KeyPresser
	Runner TaskRunner
	// Enabled reports the current humanize setting; it is read on every tick.
	Enabled func() bool
	// Rand is the random source for threshold draws. Defaults to a randomly seeded PCG.
	Rand    *rand.Rand
	Logger  Logger
	Metrics *Metrics
}

// IdleScheduler presses and releases KeyUp when the user has been idle for a
// random number of ticks, then draws a new threshold.
type IdleScheduler struct {
	input   InputState
	keys    KeyPresser
	runner  TaskRunner
	enabled func() bool
	logger  Logger
	metrics *Metrics

	mu        sync.Mutex
	rng       *rand.Rand
	threshold int
}

// NewIdleScheduler creates a scheduler with a freshly drawn threshold.
func NewIdleScheduler(cfg IdleSchedulerConfig) *IdleScheduler {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	enabled := cfg.Enabled
	if enabled == nil {
		enabled = func() bool { return false }
	}
	return &IdleScheduler{
		input:     cfg.Input,
		keys:      cfg.Keys,
		runner:    cfg.Runner,
		enabled:   enabled,
		logger:    NewLogger(cfg.Logger).With("component", "idle_scheduler"),
		metrics:   cfg.Metrics,
		rng:       rng,
		threshold: DrawIdleThreshold(rng),
	}
}

// Attach subscribes the scheduler to GameTick on bus.
func (s *IdleScheduler) Attach(bus Bus) (detach func()) {
	return Subscribe(bus, s.OnGameTick)
}

// Threshold returns the current threshold.
func (s *IdleScheduler) Threshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// OnGameTick fires the simulated key press when the idle time reaches the threshold.
func (s *IdleScheduler) OnGameTick(GameTick) {
	if !s.enabled() {
		return
	}
	idle := min(s.input.KeyboardIdleTicks(), s.input.MouseIdleTicks())

	s.mu.Lock()
	if idle < s.threshold {
		s.mu.Unlock()
		return
	}
	fired := s.threshold
	s.threshold = DrawIdleThreshold(s.rng)
	next := s.threshold
	s.mu.Unlock()

	s.logger.Debug("Idle threshold reached", "idle_ticks", idle, "threshold", fired, "next_threshold", next)
	err := s.runner.Submit("idle_keypress", func() {
		s.keys.Press(KeyUp)
		s.keys.Release(KeyUp)
	})
	if err == nil {
		s.metrics.IdleAction()
	}
}
