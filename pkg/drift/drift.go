// Package drift implements the client side of playback reconciliation: given the
// authoritative room state from a sync-response and the local player state, it
// decides how the player should converge.
package drift

import (
	"math"
	"time"
)

// State is the authoritative timeline as reported by the server.
type State struct {
	Position  float64
	IsPlaying bool
	// SyncedAt is the server time the position was recorded at.
	SyncedAt time.Time
}

// Local is what the client player currently renders.
type Local struct {
	Position  float64
	IsPlaying bool
}

type Policy struct {
	// Tolerance is the drift in seconds that is left alone.
	Tolerance float64
	// NudgeLimit is the largest drift in seconds corrected by changing the playback rate.
	NudgeLimit float64
	// RateDelta is the relative playback rate change used while nudging.
	RateDelta float64
}

var DefaultPolicy = Policy{
	Tolerance:  0.5,
	NudgeLimit: 3,
	RateDelta:  0.05,
}

type Action int

const (
	ActionNone Action = iota
	ActionNudge
	ActionSeek
)

func (a Action) String() string {
	switch a {
	case ActionNudge:
		return "nudge"
	case ActionSeek:
		return "seek"
	default:
		return "none"
	}
}

type Correction struct {
	Action Action
	// Drift is local minus expected position, negative when the client is behind.
	Drift float64
	// Rate is the playback rate to apply, 1 unless nudging.
	Rate float64
	// SeekTo is set for ActionSeek.
	SeekTo float64
	// Play and Pause request a play state change. At most one is set.
	Play  bool
	Pause bool
}

// Expected extrapolates the authoritative position at now.
func Expected(s State, now time.Time) float64 {
	if !s.IsPlaying {
		return s.Position
	}

	elapsed := now.Sub(s.SyncedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	return s.Position + elapsed
}

// Reconcile compares local against the extrapolated authoritative state.
func Reconcile(local Local, s State, now time.Time, p Policy) Correction {
	expected := Expected(s, now)
	c := Correction{
		Action: ActionNone,
		Drift:  local.Position - expected,
		Rate:   1,
		Play:   s.IsPlaying && !local.IsPlaying,
		Pause:  !s.IsPlaying && local.IsPlaying,
	}

	abs := math.Abs(c.Drift)
	switch {
	case abs <= p.Tolerance:
	case abs <= p.NudgeLimit && s.IsPlaying && local.IsPlaying:
		c.Action = ActionNudge
		if c.Drift < 0 {
			c.Rate = 1 + p.RateDelta
		} else {
			c.Rate = 1 - p.RateDelta
		}
	default:
		// paused players cannot catch up by rate
		c.Action = ActionSeek
		c.SeekTo = expected
	}

	return c
}
