// Package store defines the document-store operations the capsule engine
// needs: keyed reads and writes over the users and capsules collections,
// idempotent list appends, an atomic friend upsert, and snapshot
// subscriptions with explicit teardown.
package store

import (
	"context"
	"sync"

	"github.com/siminyang/aboutxtime/internal/model"
)

// ListField names one of a user's capsule-reference lists.
type ListField string

const (
	FieldCreated  ListField = "createdCapsulesIds"
	FieldReceived ListField = "receivedCapsulesIds"
	FieldShared   ListField = "sharedCapsulesIds"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/.
type Store interface {
	Users() Users
	Capsules() Capsules
}

type Users interface {
	// Upsert merges the given user into an existing document (set-union of
	// id lists, friends merged by id) or creates it.
	Upsert(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	Exists(ctx context.Context, userID string) (bool, error)
	// AppendCapsuleRef appends capsuleID to the named list with set-union
	// semantics; appending an id already present is a no-op.
	AppendCapsuleRef(ctx context.Context, userID string, field ListField, capsuleID string) error
	// UpsertFriend atomically refreshes or inserts the friend entry keyed
	// by f.ID. Implementations must not lose concurrent upserts.
	UpsertFriend(ctx context.Context, userID string, f model.Friend) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
}

type Capsules interface {
	// Create allocates a server-generated id and persists a minimal shell.
	Create(ctx context.Context, creatorID string) (*model.Capsule, error)
	Get(ctx context.Context, capsuleID string) (*model.Capsule, error)
	Exists(ctx context.Context, capsuleID string) (bool, error)
	// ListByRecipient returns every capsule whose recipients map contains
	// userID. Undecodable documents are dropped and logged.
	ListByRecipient(ctx context.Context, userID string) ([]*model.Capsule, error)
	// ApplyUpdate finalizes a draft into the capsule document (content
	// merge, recipient status 0, flags, open date, tags, location).
	ApplyUpdate(ctx context.Context, capsuleID string, upd model.CapsuleUpdate) error
	// SetRecipientStatus flips recipients.<userID>.status.
	SetRecipientStatus(ctx context.Context, capsuleID, userID string, status model.RecipientStatus) error
	// AppendReply appends to the ordered reply list.
	AppendReply(ctx context.Context, capsuleID string, r model.ReplyMessage) error
	Delete(ctx context.Context, capsuleID string) error
	// Watch delivers the capsule on every change until cancelled.
	Watch(ctx context.Context, capsuleID string) (*CapsuleSubscription, error)
	// WatchRecipient delivers the recipient's full capsule list on every
	// change until cancelled.
	WatchRecipient(ctx context.Context, userID string) (*RecipientSubscription, error)
}

// CapsuleSubscription is a standing snapshot subscription on one capsule.
// Callers must Cancel it when no longer needed; the channel is closed on
// cancellation.
type CapsuleSubscription struct {
	C      <-chan *model.Capsule
	cancel func()
	once   sync.Once
}

func NewCapsuleSubscription(c <-chan *model.Capsule, cancel func()) *CapsuleSubscription {
	return &CapsuleSubscription{C: c, cancel: cancel}
}

func (s *CapsuleSubscription) Cancel() { s.once.Do(s.cancel) }

// RecipientSubscription is a standing subscription on a user's capsule set.
type RecipientSubscription struct {
	C      <-chan []*model.Capsule
	cancel func()
	once   sync.Once
}

func NewRecipientSubscription(c <-chan []*model.Capsule, cancel func()) *RecipientSubscription {
	return &RecipientSubscription{C: c, cancel: cancel}
}

func (s *RecipientSubscription) Cancel() { s.once.Do(s.cancel) }

// HealthPinger is implemented by adapters that can report connectivity.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
