// Package notify sends best-effort push notifications to capsule
// recipients. Delivery failures are logged, never propagated; a capsule
// submit must not fail because a device token went stale.
package notify

import (
	"context"

	"github.com/siminyang/aboutxtime/internal/model"
)

// Event describes a capsule-related notification.
type Event struct {
	Capsule   *model.Capsule
	Recipient *model.User
	// SenderName is the display name shown to the recipient; empty for
	// anonymous capsules.
	SenderName string
}

type Notifier interface {
	CapsuleReceived(ctx context.Context, ev Event)
}

// Nop discards all notifications. Used by the local build target.
type Nop struct{}

func (Nop) CapsuleReceived(ctx context.Context, ev Event) {}
