package services

import (
	"context"
	"fmt"

	"github.com/siminyang/aboutxtime/internal/friendcache"
	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/store"
)

// UserService orchestrates user-document use cases. Friend lookups go
// through an injected bounded cache.
type UserService struct {
	store store.Store
	cache *friendcache.Cache
}

func NewUserService(s store.Store, cache *friendcache.Cache) *UserService {
	if cache == nil {
		cache = friendcache.New(friendcache.DefaultCapacity)
	}
	return &UserService{store: s, cache: cache}
}

// UpsertUser merges a sign-in save into the user document: profile fields
// overwrite, capsule id lists set-union, friends merge by id.
func (s *UserService) UpsertUser(ctx context.Context, u *model.User) (*model.User, error) {
	if u.ID == "" {
		return nil, fmt.Errorf("user id is required: %w", model.ErrValidation)
	}
	return s.store.Users().Upsert(ctx, u)
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().Get(ctx, userID)
}

// DeleteFriend removes the friend entry and evicts it from the cache.
func (s *UserService) DeleteFriend(ctx context.Context, userID, friendID string) error {
	if err := s.store.Users().RemoveFriend(ctx, userID, friendID); err != nil {
		return err
	}
	s.cache.Remove(friendID)
	return nil
}

// FetchFriendData resolves a friend's display record, serving repeated
// lookups from the cache. A friend whose user document lacks a name or
// avatar gets the fallback values.
func (s *UserService) FetchFriendData(ctx context.Context, friendID string) (model.Friend, error) {
	if f, ok := s.cache.Get(friendID); ok {
		return f, nil
	}
	u, err := s.store.Users().Get(ctx, friendID)
	if err != nil {
		return model.Friend{}, err
	}
	f := model.Friend{
		ID:       u.ID,
		FullName: u.Name,
		Avatar:   u.AvatarURL,
	}
	if f.FullName == "" {
		f.FullName = "Unknown"
	}
	if f.Avatar == "" {
		f.Avatar = "planet8"
	}
	s.cache.Put(f)
	return f, nil
}
