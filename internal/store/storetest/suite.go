// Package storetest holds a compliance suite every store adapter must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/store"
)

// Run exercises the store contract against an adapter. Implementations
// should return a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	creatorID := "u-" + uuid.New().String()
	recipientID := "u-" + uuid.New().String()

	// Users
	if _, err := s.Users().Upsert(ctx, &model.User{ID: creatorID, Name: "Simin", Email: creatorID + "@example.test"}); err != nil {
		t.Fatalf("Upsert creator: %v", err)
	}
	if _, err := s.Users().Upsert(ctx, &model.User{ID: recipientID, Name: "Nita"}); err != nil {
		t.Fatalf("Upsert recipient: %v", err)
	}
	if got, err := s.Users().Get(ctx, creatorID); err != nil || got.Name != "Simin" {
		t.Fatalf("Get creator: got=%+v err=%v", got, err)
	}
	if ok, err := s.Users().Exists(ctx, recipientID); err != nil || !ok {
		t.Fatalf("Exists recipient: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Users().Exists(ctx, "u-missing"); err != nil || ok {
		t.Fatalf("Exists missing: ok=%v err=%v", ok, err)
	}
	if _, err := s.Users().Get(ctx, "u-missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get missing: err=%v, want ErrNotFound", err)
	}

	// Upsert merge keeps existing list entries and unions new ones.
	if _, err := s.Users().Upsert(ctx, &model.User{ID: creatorID, Name: "Simin Y", CreatedCapsulesIds: []string{"cap-a"}}); err != nil {
		t.Fatalf("Upsert merge: %v", err)
	}
	if got, _ := s.Users().Get(ctx, creatorID); got.Name != "Simin Y" || len(got.CreatedCapsulesIds) != 1 {
		t.Fatalf("Upsert merge: got=%+v", got)
	}

	// Capsule shell
	shell, err := s.Capsules().Create(ctx, creatorID)
	if err != nil {
		t.Fatalf("Create capsule: %v", err)
	}
	if shell.CapsuleID == "" || shell.CreatorID != creatorID {
		t.Fatalf("Create capsule shell: %+v", shell)
	}
	if ok, err := s.Capsules().Exists(ctx, shell.CapsuleID); err != nil || !ok {
		t.Fatalf("Exists capsule: ok=%v err=%v", ok, err)
	}

	// Finalize the draft into the shell.
	openDate := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	upd := model.CapsuleUpdate{
		UserID:           creatorID,
		Recipient:        recipientID,
		Content:          model.Content{Text: "hello future", FromWhom: "Simin", ToWhom: "Nita"},
		OpenDate:         openDate,
		IsLocationLocked: true,
		Location:         &model.Location{Latitude: 25.03, Longitude: 121.56, Radius: 1},
		EmotionTagLabels: []string{"excited"},
		ImageTagLabels:   []int{15},
	}
	if err := s.Capsules().ApplyUpdate(ctx, shell.CapsuleID, upd); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	got, err := s.Capsules().Get(ctx, shell.CapsuleID)
	if err != nil {
		t.Fatalf("Get capsule: %v", err)
	}
	if got.Content[creatorID].Text != "hello future" {
		t.Fatalf("ApplyUpdate content: %+v", got.Content)
	}
	if r, ok := got.Recipients[recipientID]; !ok || r.Status != model.StatusPending {
		t.Fatalf("ApplyUpdate recipients: %+v", got.Recipients)
	}
	if !got.OpenDate.Equal(openDate) || got.Location == nil || got.UpdatedDate == nil {
		t.Fatalf("ApplyUpdate fields: %+v", got)
	}

	// List by recipient membership.
	if lst, err := s.Capsules().ListByRecipient(ctx, recipientID); err != nil || len(lst) != 1 || lst[0].CapsuleID != shell.CapsuleID {
		t.Fatalf("ListByRecipient: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Capsules().ListByRecipient(ctx, creatorID); err != nil || len(lst) != 0 {
		t.Fatalf("ListByRecipient non-member: n=%d err=%v", len(lst), err)
	}

	// Capsule reference lists are set-union appends.
	if err := s.Users().AppendCapsuleRef(ctx, creatorID, store.FieldCreated, shell.CapsuleID); err != nil {
		t.Fatalf("AppendCapsuleRef created: %v", err)
	}
	if err := s.Users().AppendCapsuleRef(ctx, creatorID, store.FieldCreated, shell.CapsuleID); err != nil {
		t.Fatalf("AppendCapsuleRef repeat: %v", err)
	}
	if err := s.Users().AppendCapsuleRef(ctx, recipientID, store.FieldReceived, shell.CapsuleID); err != nil {
		t.Fatalf("AppendCapsuleRef received: %v", err)
	}
	if u, _ := s.Users().Get(ctx, creatorID); len(u.CreatedCapsulesIds) != 2 {
		t.Fatalf("AppendCapsuleRef dedup: %v", u.CreatedCapsulesIds)
	}

	// Friend upsert keeps the avatar and refreshes name and date.
	first := model.Friend{ID: recipientID, FullName: "Nita", Avatar: "planet3", LatestInteractionDate: time.Now().UTC().Add(-time.Hour)}
	if err := s.Users().UpsertFriend(ctx, creatorID, first); err != nil {
		t.Fatalf("UpsertFriend: %v", err)
	}
	later := time.Now().UTC().Truncate(time.Second)
	if err := s.Users().UpsertFriend(ctx, creatorID, model.Friend{ID: recipientID, FullName: "Nita C", Avatar: "planet9", LatestInteractionDate: later}); err != nil {
		t.Fatalf("UpsertFriend refresh: %v", err)
	}
	u, _ := s.Users().Get(ctx, creatorID)
	f, ok := u.FindFriend(recipientID)
	if !ok || f.FullName != "Nita C" || f.Avatar != "planet3" || !f.LatestInteractionDate.Equal(later) {
		t.Fatalf("UpsertFriend result: %+v", f)
	}

	// Concurrent friend upserts must not lose entries.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fr := model.Friend{ID: uuid.New().String(), FullName: "friend", Avatar: "planet1", LatestInteractionDate: time.Now().UTC()}
			if err := s.Users().UpsertFriend(ctx, creatorID, fr); err != nil && !errors.Is(err, model.ErrConflict) {
				t.Errorf("concurrent UpsertFriend %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	if err := s.Users().RemoveFriend(ctx, creatorID, recipientID); err != nil {
		t.Fatalf("RemoveFriend: %v", err)
	}
	if u, _ := s.Users().Get(ctx, creatorID); u != nil {
		if _, ok := u.FindFriend(recipientID); ok {
			t.Fatalf("RemoveFriend left entry behind")
		}
	}

	// Open transition and replies.
	if err := s.Capsules().SetRecipientStatus(ctx, shell.CapsuleID, recipientID, model.StatusOpened); err != nil {
		t.Fatalf("SetRecipientStatus: %v", err)
	}
	if got, _ := s.Capsules().Get(ctx, shell.CapsuleID); got.Recipients[recipientID].Status != model.StatusOpened {
		t.Fatalf("SetRecipientStatus not persisted: %+v", got.Recipients)
	}
	reply := model.ReplyMessage{ID: uuid.New().String(), UserID: recipientID, Text: "got it", CreatedTime: time.Now().UTC()}
	if err := s.Capsules().AppendReply(ctx, shell.CapsuleID, reply); err != nil {
		t.Fatalf("AppendReply: %v", err)
	}
	if got, _ := s.Capsules().Get(ctx, shell.CapsuleID); len(got.ReplyMessages) != 1 || got.ReplyMessages[0].Text != "got it" {
		t.Fatalf("AppendReply not persisted: %+v", got.ReplyMessages)
	}

	// Missing-capsule errors.
	if _, err := s.Capsules().Get(ctx, "cap-missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get missing capsule: err=%v", err)
	}
	if err := s.Capsules().AppendReply(ctx, "cap-missing", reply); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("AppendReply missing capsule: err=%v", err)
	}

	// Delete.
	if err := s.Capsules().Delete(ctx, shell.CapsuleID); err != nil {
		t.Fatalf("Delete capsule: %v", err)
	}
	if err := s.Capsules().Delete(ctx, shell.CapsuleID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Delete missing capsule: err=%v", err)
	}
}
