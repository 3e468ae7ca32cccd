// Package lifecycle holds the pure functions behind a capsule's
// Pending/Openable/Opened view: the time gate, the geofence gate, the
// distance-and-direction readout, and the countdown rendering. None of
// these touch the store; readers derive them from the document and the
// wall clock.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/siminyang/aboutxtime/internal/model"
)

// State is the per-recipient lifecycle view of a capsule.
type State int

const (
	// StatePending: persisted, status 0, openDate still in the future.
	StatePending State = iota
	// StateOpenable: time gate passed and geofence satisfied, status still 0.
	StateOpenable
	// StateLocked: time gate passed but the reader is outside the geofence.
	StateLocked
	// StateOpened: recipient status is 1. Terminal per recipient.
	StateOpened
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateOpenable:
		return "openable"
	case StateLocked:
		return "locked"
	case StateOpened:
		return "opened"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Position is a reader's current coordinates, supplied when evaluating a
// location-locked capsule.
type Position struct {
	Latitude  float64
	Longitude float64
}

// StateOf derives the lifecycle state for one recipient. pos may be nil;
// a location-locked capsule with no known position counts as outside the
// geofence.
func StateOf(c *model.Capsule, userID string, now time.Time, pos *Position) State {
	if r, ok := c.Recipients[userID]; ok && r.Status == model.StatusOpened {
		return StateOpened
	}
	if now.Before(c.OpenDate) {
		return StatePending
	}
	if c.IsLocationLocked {
		if pos == nil || !WithinGeofence(c.Location, *pos) {
			return StateLocked
		}
	}
	return StateOpenable
}

// IsOpenable reports whether the recipient may transition the capsule to
// Opened right now.
func IsOpenable(c *model.Capsule, userID string, now time.Time, pos *Position) bool {
	return StateOf(c, userID, now, pos) == StateOpenable
}

// WithinGeofence reports whether pos lies within loc's radius. Radius is in
// kilometres and the boundary is inclusive.
func WithinGeofence(loc *model.Location, pos Position) bool {
	if loc == nil {
		return true
	}
	return DistanceKM(pos.Latitude, pos.Longitude, loc.Latitude, loc.Longitude) <= float64(loc.Radius)
}

// Countdown is the rendered time-remaining view of a pending capsule.
type Countdown struct {
	// TimeText is HH:MM:SS with hours unbounded, pinned to 00:00:00 once
	// the open date has passed.
	TimeText string
	// Progress is 1 - remaining/total, clamped to [0,1].
	Progress float64
	// Remaining is zero once the open date has passed.
	Remaining time.Duration
}

// CountdownAt renders the countdown for a capsule at the given instant.
func CountdownAt(c *model.Capsule, now time.Time) Countdown {
	remaining := c.OpenDate.Sub(now)
	if remaining <= 0 {
		return Countdown{TimeText: "00:00:00", Progress: 1}
	}
	total := c.OpenDate.Sub(c.CreatedDate)
	progress := 1.0
	if total > 0 {
		progress = 1 - remaining.Seconds()/total.Seconds()
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	secs := int(remaining.Seconds())
	return Countdown{
		TimeText:  fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60),
		Progress:  progress,
		Remaining: remaining,
	}
}
