package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/siminyang/aboutxtime/internal/delivery"
	"github.com/siminyang/aboutxtime/internal/lifecycle"
	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/query"
	"github.com/siminyang/aboutxtime/internal/store"
)

// CapsuleService orchestrates capsule use cases: submission, the open
// gate, live subscriptions and the read-side aggregations.
type CapsuleService struct {
	store store.Store
	sync  *delivery.Synchronizer
	now   func() time.Time
}

func NewCapsuleService(s store.Store, sync *delivery.Synchronizer) *CapsuleService {
	return &CapsuleService{store: s, sync: sync, now: time.Now}
}

// CreateCapsule allocates a server-generated id and persists a shell.
func (s *CapsuleService) CreateCapsule(ctx context.Context, creatorID string) (*model.Capsule, error) {
	return s.store.Capsules().Create(ctx, creatorID)
}

// SubmitCapsule materializes a draft through the delivery synchronizer.
func (s *CapsuleService) SubmitCapsule(ctx context.Context, d delivery.Draft) (*model.Capsule, error) {
	return s.sync.Submit(ctx, d)
}

// GetCapsule loads a single capsule.
func (s *CapsuleService) GetCapsule(ctx context.Context, capsuleID string) (*model.Capsule, error) {
	return s.store.Capsules().Get(ctx, capsuleID)
}

// OpenCapsule transitions the recipient's status to Opened if the time
// gate and, for location-locked capsules, the geofence both pass. pos may
// be nil for capsules without a location lock. The transition is not
// reversible.
func (s *CapsuleService) OpenCapsule(ctx context.Context, capsuleID, userID string, pos *lifecycle.Position) (*model.Capsule, error) {
	c, err := s.store.Capsules().Get(ctx, capsuleID)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Recipients[userID]; !ok {
		return nil, fmt.Errorf("user %s is not a recipient of capsule %s: %w", userID, capsuleID, model.ErrNotFound)
	}
	switch state := lifecycle.StateOf(c, userID, s.now(), pos); state {
	case lifecycle.StateOpened:
		// Already opened; idempotent.
		return c, nil
	case lifecycle.StateOpenable:
	default:
		return nil, fmt.Errorf("capsule %s is %s for user %s: %w", capsuleID, state, userID, model.ErrCapsuleLocked)
	}
	if err := s.store.Capsules().SetRecipientStatus(ctx, capsuleID, userID, model.StatusOpened); err != nil {
		return nil, err
	}
	return s.store.Capsules().Get(ctx, capsuleID)
}

// SubscribeToCapsule returns a live subscription on one capsule. The
// caller must Cancel it.
func (s *CapsuleService) SubscribeToCapsule(ctx context.Context, capsuleID string) (*store.CapsuleSubscription, error) {
	return s.store.Capsules().Watch(ctx, capsuleID)
}

// FetchUserCapsules returns a standing subscription on the user's capsule
// set; each delivery carries the full current list.
func (s *CapsuleService) FetchUserCapsules(ctx context.Context, userID string) (*store.RecipientSubscription, error) {
	return s.store.Capsules().WatchRecipient(ctx, userID)
}

// ListReceivedCapsules is the one-shot form of FetchUserCapsules.
func (s *CapsuleService) ListReceivedCapsules(ctx context.Context, userID string) ([]*model.Capsule, error) {
	return s.store.Capsules().ListByRecipient(ctx, userID)
}

// AddReply appends a reply to the capsule's ordered reply list.
func (s *CapsuleService) AddReply(ctx context.Context, capsuleID, userID, text string) (*model.ReplyMessage, error) {
	if text == "" {
		return nil, fmt.Errorf("reply text is required: %w", model.ErrValidation)
	}
	r := model.ReplyMessage{
		ID:          uuid.New().String(),
		UserID:      userID,
		Text:        text,
		CreatedTime: s.now().UTC(),
	}
	if err := s.store.Capsules().AppendReply(ctx, capsuleID, r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteCapsule removes the capsule document. Blobs keyed by the capsule
// id are left behind; object storage is cleaned out of band.
func (s *CapsuleService) DeleteCapsule(ctx context.Context, capsuleID string) error {
	return s.store.Capsules().Delete(ctx, capsuleID)
}

// PendingCapsules returns the user's pending tray: unopened capsules,
// nearest open date first, capped at ten.
func (s *CapsuleService) PendingCapsules(ctx context.Context, userID string) ([]*model.Capsule, error) {
	capsules, err := s.store.Capsules().ListByRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}
	return query.PendingTray(capsules, userID), nil
}

// OpenedCapsulesByAge groups the user's opened capsules by their age at
// each capsule's open date. Requires the user to have a birth date.
func (s *CapsuleService) OpenedCapsulesByAge(ctx context.Context, userID string) (map[int][]*model.Capsule, error) {
	return s.SearchCapsules(ctx, userID, "")
}

// SearchCapsules filters the user's capsules by a free-text query and
// regroups by age. The empty query returns everything.
func (s *CapsuleService) SearchCapsules(ctx context.Context, userID, q string) (map[int][]*model.Capsule, error) {
	u, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.BirthDate == nil {
		return nil, fmt.Errorf("user %s has no birth date: %w", userID, model.ErrValidation)
	}
	capsules, err := s.store.Capsules().ListByRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}
	return query.Search(capsules, userID, *u.BirthDate, q), nil
}
