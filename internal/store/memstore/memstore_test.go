package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/store"
	"github.com/siminyang/aboutxtime/internal/store/storetest"
)

func TestMemStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestMemStore_Watch(t *testing.T) {
	s := New()
	ctx := context.Background()

	shell, err := s.Capsules().Create(ctx, "u-creator")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sub, err := s.Capsules().Watch(ctx, shell.CapsuleID)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer sub.Cancel()

	upd := model.CapsuleUpdate{
		UserID:    "u-creator",
		Recipient: "u-recipient",
		Content:   model.Content{Text: "hi", FromWhom: "a", ToWhom: "b"},
		OpenDate:  time.Now().UTC().Add(time.Hour),
	}
	if err := s.Capsules().ApplyUpdate(ctx, shell.CapsuleID, upd); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}

	select {
	case got := <-sub.C:
		if got.Content["u-creator"].Text != "hi" {
			t.Fatalf("watch delivered stale document: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("watch delivered nothing after mutation")
	}

	sub.Cancel()
	sub.Cancel() // idempotent
	if _, ok := <-sub.C; ok {
		// A buffered snapshot may still drain; the channel must close after.
		if _, ok := <-sub.C; ok {
			t.Fatal("channel still open after Cancel")
		}
	}
}

func TestMemStore_DropsUndecodableDocuments(t *testing.T) {
	s := New()
	ctx := context.Background()

	shell, err := s.Capsules().Create(ctx, "u-creator")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	upd := model.CapsuleUpdate{
		UserID:    "u-creator",
		Recipient: "u-recipient",
		Content:   model.Content{Text: "hi", FromWhom: "a", ToWhom: "b"},
		OpenDate:  time.Now().UTC().Add(time.Hour),
	}
	if err := s.Capsules().ApplyUpdate(ctx, shell.CapsuleID, upd); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}

	// Plant a corrupt document alongside the good one.
	ms := s.(*memStore)
	ms.mu.Lock()
	ms.capsules["cap-corrupt"] = []byte(`{"creatorId":"u-creator"`)
	ms.mu.Unlock()

	got, err := s.Capsules().ListByRecipient(ctx, "u-recipient")
	if err != nil {
		t.Fatalf("ListByRecipient: %v", err)
	}
	if len(got) != 1 || got[0].CapsuleID != shell.CapsuleID {
		t.Fatalf("expected only the decodable capsule, got %+v", got)
	}
}

func TestMemStore_WatchRecipient(t *testing.T) {
	s := New()
	ctx := context.Background()

	sub, err := s.Capsules().WatchRecipient(ctx, "u-r")
	if err != nil {
		t.Fatalf("WatchRecipient: %v", err)
	}
	defer sub.Cancel()

	// Initial snapshot is empty.
	select {
	case lst := <-sub.C:
		if len(lst) != 0 {
			t.Fatalf("initial snapshot: %d capsules", len(lst))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	shell, _ := s.Capsules().Create(ctx, "u-c")
	upd := model.CapsuleUpdate{
		UserID:    "u-c",
		Recipient: "u-r",
		Content:   model.Content{Text: "hi", FromWhom: "a", ToWhom: "b"},
		OpenDate:  time.Now().UTC().Add(time.Hour),
	}
	if err := s.Capsules().ApplyUpdate(ctx, shell.CapsuleID, upd); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case lst := <-sub.C:
			if len(lst) == 1 && lst[0].CapsuleID == shell.CapsuleID {
				return
			}
		case <-deadline:
			t.Fatal("recipient watch never delivered the new capsule")
		}
	}
}
