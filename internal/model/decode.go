package model

import (
	"encoding/json"
	"fmt"
)

// DecodeCapsule parses a stored capsule document and validates it. Decoding
// fails closed: a document missing required fields is rejected rather than
// silently defaulted, so upstream corruption surfaces instead of masking.
func DecodeCapsule(data []byte) (*Capsule, error) {
	var c Capsule
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode capsule: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the invariants of a persisted capsule document.
func (c *Capsule) Validate() error {
	if c.CapsuleID == "" {
		return fmt.Errorf("capsule missing capsuleId: %w", ErrValidation)
	}
	if c.CreatorID == "" {
		return fmt.Errorf("capsule %s missing creatorId: %w", c.CapsuleID, ErrValidation)
	}
	if c.CreatedDate.IsZero() {
		return fmt.Errorf("capsule %s missing createdDate: %w", c.CapsuleID, ErrValidation)
	}
	for uid, r := range c.Recipients {
		if r.Status != StatusPending && r.Status != StatusOpened {
			return fmt.Errorf("capsule %s recipient %s has status %d: %w", c.CapsuleID, uid, r.Status, ErrValidation)
		}
	}
	for uid, ct := range c.Content {
		if ct.Text == "" {
			return fmt.Errorf("capsule %s content %s has empty text: %w", c.CapsuleID, uid, ErrValidation)
		}
	}
	if c.IsLocationLocked && c.Location == nil {
		return fmt.Errorf("capsule %s location-locked without location: %w", c.CapsuleID, ErrValidation)
	}
	for i, r := range c.ReplyMessages {
		if r.ID == "" || r.UserID == "" {
			return fmt.Errorf("capsule %s reply %d missing id or userId: %w", c.CapsuleID, i, ErrValidation)
		}
	}
	return nil
}

// DecodeUser parses a stored user document.
func DecodeUser(data []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("user document missing id: %w", ErrValidation)
	}
	return &u, nil
}
