// Package memstore is an in-memory store adapter. It backs the local build
// target and the unit tests, and implements the same document semantics as
// the Postgres adapter, including snapshot subscriptions.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/store"
)

const watchBuffer = 16

// New constructs an empty in-memory store.
func New() store.Store {
	return &memStore{
		users:             make(map[string][]byte),
		capsules:          make(map[string][]byte),
		capsuleWatchers:   make(map[string]map[int]chan *model.Capsule),
		recipientWatchers: make(map[int]recipientWatcher),
	}
}

type recipientWatcher struct {
	userID string
	ch     chan []*model.Capsule
}

type memStore struct {
	mu       sync.Mutex
	users    map[string][]byte
	capsules map[string][]byte

	nextWatcher       int
	capsuleWatchers   map[string]map[int]chan *model.Capsule
	recipientWatchers map[int]recipientWatcher
}

func (s *memStore) Users() store.Users       { return &users{s} }
func (s *memStore) Capsules() store.Capsules { return &capsules{s} }

// HealthPing implements store.HealthPinger.
func (s *memStore) HealthPing(ctx context.Context) error { return nil }

func encode(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}

// notifyCapsule fans the current document out to watchers of capsuleID and
// refreshed lists to every recipient watcher. Caller holds s.mu.
func (s *memStore) notifyCapsule(capsuleID string) {
	if doc, ok := s.capsules[capsuleID]; ok {
		if c, err := model.DecodeCapsule(doc); err == nil {
			for _, ch := range s.capsuleWatchers[capsuleID] {
				select {
				case ch <- c:
				default:
				}
			}
		}
	}
	for _, w := range s.recipientWatchers {
		list := s.listByRecipientLocked(w.userID)
		select {
		case w.ch <- list:
		default:
		}
	}
}

func (s *memStore) listByRecipientLocked(userID string) []*model.Capsule {
	var out []*model.Capsule
	for id, doc := range s.capsules {
		c, err := model.DecodeCapsule(doc)
		if err != nil {
			log.Warn().Err(err).Str("capsule_id", id).Msg("dropping undecodable capsule document")
			continue
		}
		if _, ok := c.Recipients[userID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// --- Users ---

type users struct{ s *memStore }

func (u *users) Upsert(ctx context.Context, in *model.User) (*model.User, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("user id required: %w", model.ErrValidation)
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	cur := in
	if doc, ok := u.s.users[in.ID]; ok {
		existing, err := model.DecodeUser(doc)
		if err != nil {
			return nil, err
		}
		existing.Merge(in)
		cur = existing
	}
	u.s.users[in.ID] = encode(cur)
	out, err := model.DecodeUser(u.s.users[in.ID])
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	doc, ok := u.s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	return model.DecodeUser(doc)
}

func (u *users) Exists(ctx context.Context, userID string) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	_, ok := u.s.users[userID]
	return ok, nil
}

func (u *users) mutate(userID string, fn func(*model.User)) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	doc, ok := u.s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	cur, err := model.DecodeUser(doc)
	if err != nil {
		return err
	}
	fn(cur)
	u.s.users[userID] = encode(cur)
	return nil
}

func (u *users) AppendCapsuleRef(ctx context.Context, userID string, field store.ListField, capsuleID string) error {
	return u.mutate(userID, func(cur *model.User) {
		switch field {
		case store.FieldCreated:
			cur.CreatedCapsulesIds = model.AppendUnique(cur.CreatedCapsulesIds, capsuleID)
		case store.FieldReceived:
			cur.ReceivedCapsulesIds = model.AppendUnique(cur.ReceivedCapsulesIds, capsuleID)
		case store.FieldShared:
			cur.SharedCapsulesIds = model.AppendUnique(cur.SharedCapsulesIds, capsuleID)
		}
	})
}

func (u *users) UpsertFriend(ctx context.Context, userID string, f model.Friend) error {
	return u.mutate(userID, func(cur *model.User) { cur.UpsertFriend(f) })
}

func (u *users) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return u.mutate(userID, func(cur *model.User) { cur.RemoveFriend(friendID) })
}

// --- Capsules ---

type capsules struct{ s *memStore }

func (c *capsules) Create(ctx context.Context, creatorID string) (*model.Capsule, error) {
	if creatorID == "" {
		return nil, fmt.Errorf("creator id required: %w", model.ErrValidation)
	}
	shell := &model.Capsule{
		CapsuleID:   uuid.New().String(),
		CreatorID:   creatorID,
		Recipients:  map[string]model.Recipient{},
		Content:     map[string]model.Content{},
		CreatedDate: time.Now().UTC(),
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.capsules[shell.CapsuleID] = encode(shell)
	return shell, nil
}

func (c *capsules) Get(ctx context.Context, capsuleID string) (*model.Capsule, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	doc, ok := c.s.capsules[capsuleID]
	if !ok {
		return nil, fmt.Errorf("capsule %s: %w", capsuleID, model.ErrNotFound)
	}
	return model.DecodeCapsule(doc)
}

func (c *capsules) Exists(ctx context.Context, capsuleID string) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	_, ok := c.s.capsules[capsuleID]
	return ok, nil
}

func (c *capsules) ListByRecipient(ctx context.Context, userID string) ([]*model.Capsule, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.listByRecipientLocked(userID), nil
}

func (c *capsules) mutate(capsuleID string, fn func(*model.Capsule)) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	doc, ok := c.s.capsules[capsuleID]
	if !ok {
		return fmt.Errorf("capsule %s: %w", capsuleID, model.ErrNotFound)
	}
	cur, err := model.DecodeCapsule(doc)
	if err != nil {
		return err
	}
	fn(cur)
	c.s.capsules[capsuleID] = encode(cur)
	c.s.notifyCapsule(capsuleID)
	return nil
}

func (c *capsules) ApplyUpdate(ctx context.Context, capsuleID string, upd model.CapsuleUpdate) error {
	return c.mutate(capsuleID, func(cur *model.Capsule) { cur.ApplyUpdate(upd, time.Now().UTC()) })
}

func (c *capsules) SetRecipientStatus(ctx context.Context, capsuleID, userID string, status model.RecipientStatus) error {
	return c.mutate(capsuleID, func(cur *model.Capsule) {
		if cur.Recipients == nil {
			cur.Recipients = map[string]model.Recipient{}
		}
		cur.Recipients[userID] = model.Recipient{Status: status}
	})
}

func (c *capsules) AppendReply(ctx context.Context, capsuleID string, r model.ReplyMessage) error {
	return c.mutate(capsuleID, func(cur *model.Capsule) {
		cur.ReplyMessages = append(cur.ReplyMessages, r)
	})
}

func (c *capsules) Delete(ctx context.Context, capsuleID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.capsules[capsuleID]; !ok {
		return fmt.Errorf("capsule %s: %w", capsuleID, model.ErrNotFound)
	}
	delete(c.s.capsules, capsuleID)
	// Capsule watchers end with the document; recipient watchers get a
	// refreshed list.
	for id, ch := range c.s.capsuleWatchers[capsuleID] {
		delete(c.s.capsuleWatchers[capsuleID], id)
		close(ch)
	}
	delete(c.s.capsuleWatchers, capsuleID)
	c.s.notifyCapsule(capsuleID)
	return nil
}

func (c *capsules) Watch(ctx context.Context, capsuleID string) (*store.CapsuleSubscription, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.capsules[capsuleID]; !ok {
		return nil, fmt.Errorf("capsule %s: %w", capsuleID, model.ErrNotFound)
	}
	id := c.s.nextWatcher
	c.s.nextWatcher++
	ch := make(chan *model.Capsule, watchBuffer)
	if c.s.capsuleWatchers[capsuleID] == nil {
		c.s.capsuleWatchers[capsuleID] = make(map[int]chan *model.Capsule)
	}
	c.s.capsuleWatchers[capsuleID][id] = ch
	cancel := func() {
		c.s.mu.Lock()
		defer c.s.mu.Unlock()
		if m := c.s.capsuleWatchers[capsuleID]; m != nil {
			if _, ok := m[id]; ok {
				delete(m, id)
				close(ch)
			}
		}
	}
	return store.NewCapsuleSubscription(ch, cancel), nil
}

func (c *capsules) WatchRecipient(ctx context.Context, userID string) (*store.RecipientSubscription, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	id := c.s.nextWatcher
	c.s.nextWatcher++
	ch := make(chan []*model.Capsule, watchBuffer)
	c.s.recipientWatchers[id] = recipientWatcher{userID: userID, ch: ch}
	// Initial snapshot so subscribers do not wait for the first mutation.
	ch <- c.s.listByRecipientLocked(userID)
	cancel := func() {
		c.s.mu.Lock()
		defer c.s.mu.Unlock()
		if _, ok := c.s.recipientWatchers[id]; ok {
			delete(c.s.recipientWatchers, id)
			close(ch)
		}
	}
	return store.NewRecipientSubscription(ch, cancel), nil
}
