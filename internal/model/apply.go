package model

import "time"

// Document mutation helpers shared by the store adapters so the JSON shape
// written to Postgres matches what the in-memory adapter produces.

// ApplyUpdate merges a finalized draft into the capsule document: the
// contributor's content entry, the recipient's pending status, flags, open
// date, geofence and tag fields.
func (c *Capsule) ApplyUpdate(upd CapsuleUpdate, now time.Time) {
	if c.Content == nil {
		c.Content = make(map[string]Content)
	}
	if c.Recipients == nil {
		c.Recipients = make(map[string]Recipient)
	}
	c.Content[upd.UserID] = upd.Content
	c.Recipients[upd.Recipient] = Recipient{Status: StatusPending}
	c.OpenDate = upd.OpenDate
	c.Location = upd.Location
	c.IsAnonymous = upd.IsAnonymous
	c.IsLocationLocked = upd.IsLocationLocked
	c.IsShared = upd.IsShared
	c.EmotionTagLabels = upd.EmotionTagLabels
	c.ImageTagLabels = upd.ImageTagLabels
	c.UpdatedDate = &now
}

// AppendUnique appends id to list unless already present (set-union
// semantics; appending an existing id is a no-op).
func AppendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

// UpsertFriend refreshes the entry for f.ID or appends a new one. An
// existing entry keeps its avatar and keeps its name when the incoming
// name is empty; the interaction date is always refreshed.
func (u *User) UpsertFriend(f Friend) {
	for i := range u.Friends {
		if u.Friends[i].ID == f.ID {
			if f.FullName != "" {
				u.Friends[i].FullName = f.FullName
			}
			u.Friends[i].LatestInteractionDate = f.LatestInteractionDate
			return
		}
	}
	u.Friends = append(u.Friends, f)
}

// RemoveFriend deletes the entry for friendID, if present.
func (u *User) RemoveFriend(friendID string) {
	out := u.Friends[:0]
	for _, f := range u.Friends {
		if f.ID != friendID {
			out = append(out, f)
		}
	}
	u.Friends = out
}

// FindFriend returns the friend entry for friendID.
func (u *User) FindFriend(friendID string) (Friend, bool) {
	for _, f := range u.Friends {
		if f.ID == friendID {
			return f, true
		}
	}
	return Friend{}, false
}

// Merge folds an incoming user save into the existing document: profile
// fields are overwritten, capsule id lists are set-unioned, and incoming
// friends are added only when not already present by id.
func (u *User) Merge(in *User) {
	u.Name = in.Name
	u.Email = in.Email
	u.AvatarURL = in.AvatarURL
	u.UserIdentifier = in.UserIdentifier
	if in.BirthDate != nil {
		u.BirthDate = in.BirthDate
	}
	if in.DeviceToken != "" {
		u.DeviceToken = in.DeviceToken
	}
	for _, id := range in.CreatedCapsulesIds {
		u.CreatedCapsulesIds = AppendUnique(u.CreatedCapsulesIds, id)
	}
	for _, id := range in.ReceivedCapsulesIds {
		u.ReceivedCapsulesIds = AppendUnique(u.ReceivedCapsulesIds, id)
	}
	for _, id := range in.SharedCapsulesIds {
		u.SharedCapsulesIds = AppendUnique(u.SharedCapsulesIds, id)
	}
	for _, f := range in.Friends {
		if _, ok := u.FindFriend(f.ID); !ok {
			u.Friends = append(u.Friends, f)
		}
	}
}
