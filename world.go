// world.go: World directory records and client world descriptors
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"sort"
	"strings"
)

// WorldRecord is one world as listed by the world directory.
type WorldRecord struct {
	ID       int      `json:"id" yaml:"id"`
	Address  string   `json:"address" yaml:"address"`
	Activity string   `json:"activity" yaml:"activity"`
	Location int      `json:"location" yaml:"location"`
	Players  int      `json:"players" yaml:"players"`
	Types    []string `json:"types,omitempty" yaml:"types,omitempty"`
}

// WorldResult is the full world listing.
type WorldResult struct {
	Worlds []WorldRecord `json:"worlds" yaml:"worlds"`
}

// FindWorld returns the record with the given id, or nil.
func (r *WorldResult) FindWorld(id int) *WorldRecord {
	if r == nil {
		return nil
	}
	for i := range r.Worlds {
		if r.Worlds[i].ID == id {
			w := r.Worlds[i]
			return &w
		}
	}
	return nil
}

// WorldDirectory lists the worlds the client may connect to.
type WorldDirectory interface {
	// Worlds returns the current listing. A nil result means the lookup failed.
	Worlds(ctx context.Context) (*WorldResult, error)
}

// WorldType is a flag of a world as understood by the client.
type WorldType string

const (
	WorldTypeMembers           WorldType = "MEMBERS"
	WorldTypePVP               WorldType = "PVP"
	WorldTypeBounty            WorldType = "BOUNTY"
	WorldTypeSkillTotal        WorldType = "SKILL_TOTAL"
	WorldTypeHighRisk          WorldType = "HIGH_RISK"
	WorldTypeLastManStanding   WorldType = "LAST_MAN_STANDING"
	WorldTypeTournament        WorldType = "TOURNAMENT"
	WorldTypeDeadman           WorldType = "DEADMAN"
	WorldTypeSeasonal          WorldType = "SEASONAL"
	WorldTypeNoSaveMode        WorldType = "NOSAVE_MODE"
	WorldTypeFreshStart        WorldType = "FRESH_START_WORLD"
	WorldTypeQuestSpeedrunning WorldType = "QUEST_SPEEDRUNNING"
)

var knownWorldTypes = map[WorldType]struct{}{
	WorldTypeMembers:           {},
	WorldTypePVP:               {},
	WorldTypeBounty:            {},
	WorldTypeSkillTotal:        {},
	WorldTypeHighRisk:          {},
	WorldTypeLastManStanding:   {},
	WorldTypeTournament:        {},
	WorldTypeDeadman:           {},
	WorldTypeSeasonal:          {},
	WorldTypeNoSaveMode:        {},
	WorldTypeFreshStart:        {},
	WorldTypeQuestSpeedrunning: {},
}

// WorldTypeSet is the set of flags carried by a world descriptor.
type WorldTypeSet map[WorldType]struct{}

// Has reports whether t is in the set.
func (s WorldTypeSet) Has(t WorldType) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the members in lexical order.
func (s WorldTypeSet) Sorted() []WorldType {
	out := make([]WorldType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ToWorldTypes converts directory type names to client flags. Names are
// matched case-insensitively; unknown names are dropped.
func ToWorldTypes(names []string) WorldTypeSet {
	set := make(WorldTypeSet, len(names))
	for _, n := range names {
		t := WorldType(strings.ToUpper(strings.TrimSpace(n)))
		if _, ok := knownWorldTypes[t]; ok {
			set[t] = struct{}{}
		}
	}
	return set
}

// WorldDescriptor is the client-side world object filled in before a world change.
type WorldDescriptor struct {
	ID          int
	Address     string
	Activity    string
	Location    int
	PlayerCount int
	Types       WorldTypeSet
}

// ApplyRecord copies every directory field of r into d.
func (d *WorldDescriptor) ApplyRecord(r *WorldRecord) {
	d.Activity = r.Activity
	d.Address = r.Address
	d.ID = r.ID
	d.PlayerCount = r.Players
	d.Location = r.Location
	d.Types = ToWorldTypes(r.Types)
}
