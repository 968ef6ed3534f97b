// world_selector.go: One-shot world selection at the first login screen
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultWorldLookupTimeout bounds the directory lookup of a world selection.
const DefaultWorldLookupTimeout = 30 * time.Second

// worldOffset is added to short world numbers.
const worldOffset = 300

// NormalizeWorld maps short world numbers to full ids: values below 300 get 300 added.
func NormalizeWorld(id int) int {
	if id < worldOffset {
		return id + worldOffset
	}
	return id
}

// WorldSource provides the world id requested for this process, if any.
type WorldSource interface {
	RequestedWorld() (raw string, ok bool)
}

// WorldSelectorConfig carries the collaborators of a WorldSelector.
type WorldSelectorConfig struct {
	Client        WorldClient
	Directory     WorldDirectory
	Source        WorldSource
	Runner        TaskRunner
	LookupTimeout time.Duration
	Logger        Logger
	Metrics       *Metrics
}

// WorldSelector applies the requested world once, on the first login screen.
type WorldSelector struct {
	client    WorldClient
	directory WorldDirectory
	source    WorldSource
	runner    TaskRunner
	timeout   time.Duration
	logger    Logger
	metrics   *Metrics

	done atomic.Bool
}

// NewWorldSelector creates a selector whose latch is not yet consumed.
func NewWorldSelector(cfg WorldSelectorConfig) *WorldSelector {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultWorldLookupTimeout
	}
	return &WorldSelector{
		client:    cfg.Client,
		directory: cfg.Directory,
		source:    cfg.Source,
		runner:    cfg.Runner,
		timeout:   cfg.LookupTimeout,
		logger:    NewLogger(cfg.Logger).With("component", "world_selector"),
		metrics:   cfg.Metrics,
	}
}

// Attach subscribes the selector to GameStateChanged on bus.
func (s *WorldSelector) Attach(bus Bus) (detach func()) {
	return Subscribe(bus, s.OnGameStateChanged)
}

// Done reports whether the latch has been consumed.
func (s *WorldSelector) Done() bool { return s.done.Load() }

// OnGameStateChanged consumes the latch on the first login screen and hands
// the selection to the task runner.
func (s *WorldSelector) OnGameStateChanged(e GameStateChanged) {
	if e.State != GameStateLoginScreen || !s.done.CompareAndSwap(false, true) {
		return
	}
	if s.source == nil {
		return
	}
	raw, ok := s.source.RequestedWorld()
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		s.logger.Warn("Ignoring requested world", "error", NewInvalidWorldIDError(raw, err))
		s.metrics.WorldSelection(WorldOutcomeFailed)
		return
	}

	err = s.runner.Submit("world_select", func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_ = s.SetWorld(ctx, id)
	})
	if err != nil {
		s.metrics.WorldSelection(WorldOutcomeFailed)
	}
}

// SetWorld looks up and applies the requested world. Outcomes are logged; the
// returned error is for callers that run it directly.
func (s *WorldSelector) SetWorld(ctx context.Context, requested int) error {
	world := NormalizeWorld(requested)
	if world <= worldOffset || s.client.World() == world {
		s.logger.Debug("World change not needed", "world", world, "current", s.client.World())
		s.metrics.WorldSelection(WorldOutcomeSkipped)
		return nil
	}

	result, err := s.directory.Worlds(ctx)
	if err == nil && result == nil {
		err = fmt.Errorf("world directory returned no listing")
	}
	if err != nil {
		err = NewWorldLookupError(err)
		s.logger.Warn("Failed to lookup worlds", "world", world, "error", err)
		s.metrics.WorldSelection(WorldOutcomeFailed)
		return err
	}

	record := result.FindWorld(world)
	if record == nil {
		s.logger.Warn("World not found", "world", world)
		s.metrics.WorldSelection(WorldOutcomeNotFound)
		return NewWorldNotFoundError(world)
	}

	desc := s.client.CreateWorld()
	if desc == nil {
		desc = &WorldDescriptor{}
	}
	desc.ApplyRecord(record)
	s.client.ChangeWorld(desc)

	s.logger.Debug("Applied new world", "world", world)
	s.metrics.WorldSelection(WorldOutcomeApplied)
	return nil
}
