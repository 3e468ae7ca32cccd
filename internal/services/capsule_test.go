package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siminyang/aboutxtime/internal/blob/memblob"
	"github.com/siminyang/aboutxtime/internal/delivery"
	"github.com/siminyang/aboutxtime/internal/lifecycle"
	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/store"
	"github.com/siminyang/aboutxtime/internal/store/memstore"
)

func newCapsuleService(t *testing.T) (*CapsuleService, store.Store) {
	t.Helper()
	st := memstore.New()
	sync := delivery.New(st, memblob.New("http://localhost:8080"), nil, zerolog.Nop())
	svc := NewCapsuleService(st, sync)

	ctx := context.Background()
	birth := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, u := range []*model.User{
		{ID: "u-creator", Name: "Simin"},
		{ID: "u-recipient", Name: "Nita", BirthDate: &birth},
	} {
		if _, err := st.Users().Upsert(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return svc, st
}

func submitDraft(t *testing.T, svc *CapsuleService, open time.Time) *model.Capsule {
	t.Helper()
	c, err := svc.SubmitCapsule(context.Background(), delivery.Draft{
		CreatorID:   "u-creator",
		CreatorName: "Simin",
		Recipient:   "u-recipient",
		Text:        "see you then",
		FromWhom:    "Simin",
		ToWhom:      "Nita",
		OpenDate:    open,
	})
	require.NoError(t, err)
	return c
}

func TestOpenCapsule_TimeGate(t *testing.T) {
	svc, _ := newCapsuleService(t)
	ctx := context.Background()

	c := submitDraft(t, svc, time.Now().Add(time.Hour))

	_, err := svc.OpenCapsule(ctx, c.CapsuleID, "u-recipient", nil)
	assert.ErrorIs(t, err, model.ErrCapsuleLocked)

	// Jump past the open date.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	got, err := svc.OpenCapsule(ctx, c.CapsuleID, "u-recipient", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpened, got.Recipients["u-recipient"].Status)

	// Opening again is idempotent.
	got, err = svc.OpenCapsule(ctx, c.CapsuleID, "u-recipient", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpened, got.Recipients["u-recipient"].Status)
}

func TestOpenCapsule_Geofence(t *testing.T) {
	svc, st := newCapsuleService(t)
	ctx := context.Background()

	c, err := svc.SubmitCapsule(ctx, delivery.Draft{
		CreatorID:        "u-creator",
		CreatorName:      "Simin",
		Recipient:        "u-recipient",
		Text:             "meet me here",
		FromWhom:         "Simin",
		ToWhom:           "Nita",
		OpenDate:         time.Now().Add(11 * time.Minute),
		IsLocationLocked: true,
		Location:         &model.Location{Latitude: 25.0330, Longitude: 121.5654, Radius: 1},
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err = svc.OpenCapsule(ctx, c.CapsuleID, "u-recipient", nil)
	assert.ErrorIs(t, err, model.ErrCapsuleLocked)

	far := &lifecycle.Position{Latitude: 24.0, Longitude: 121.0}
	_, err = svc.OpenCapsule(ctx, c.CapsuleID, "u-recipient", far)
	assert.ErrorIs(t, err, model.ErrCapsuleLocked)

	near := &lifecycle.Position{Latitude: 25.0331, Longitude: 121.5655}
	got, err := svc.OpenCapsule(ctx, c.CapsuleID, "u-recipient", near)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpened, got.Recipients["u-recipient"].Status)

	stored, err := st.Capsules().Get(ctx, c.CapsuleID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpened, stored.Recipients["u-recipient"].Status)
}

func TestOpenCapsule_NotARecipient(t *testing.T) {
	svc, _ := newCapsuleService(t)
	c := submitDraft(t, svc, time.Now().Add(time.Hour))

	_, err := svc.OpenCapsule(context.Background(), c.CapsuleID, "u-stranger", nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAddReply(t *testing.T) {
	svc, _ := newCapsuleService(t)
	ctx := context.Background()
	c := submitDraft(t, svc, time.Now().Add(time.Hour))

	r, err := svc.AddReply(ctx, c.CapsuleID, "u-recipient", "can't wait")
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)

	got, err := svc.GetCapsule(ctx, c.CapsuleID)
	require.NoError(t, err)
	require.Len(t, got.ReplyMessages, 1)
	assert.Equal(t, "can't wait", got.ReplyMessages[0].Text)

	_, err = svc.AddReply(ctx, c.CapsuleID, "u-recipient", "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSubscribeToCapsule_DeliversUpdates(t *testing.T) {
	svc, _ := newCapsuleService(t)
	ctx := context.Background()
	c := submitDraft(t, svc, time.Now().Add(time.Hour))

	sub, err := svc.SubscribeToCapsule(ctx, c.CapsuleID)
	require.NoError(t, err)
	defer sub.Cancel()

	_, err = svc.AddReply(ctx, c.CapsuleID, "u-recipient", "ping")
	require.NoError(t, err)

	select {
	case got := <-sub.C:
		assert.Len(t, got.ReplyMessages, 1)
	case <-time.After(time.Second):
		t.Fatal("subscription delivered nothing")
	}
}

func TestPendingCapsules_SortedAndCapped(t *testing.T) {
	svc, _ := newCapsuleService(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		submitDraft(t, svc, time.Now().Add(time.Duration(12-i)*time.Hour))
	}

	tray, err := svc.PendingCapsules(ctx, "u-recipient")
	require.NoError(t, err)
	assert.Len(t, tray, 10)
	for i := 1; i < len(tray); i++ {
		assert.False(t, tray[i].OpenDate.Before(tray[i-1].OpenDate))
	}
}

func TestSearchCapsules(t *testing.T) {
	svc, _ := newCapsuleService(t)
	ctx := context.Background()

	c1 := submitDraft(t, svc, time.Now().Add(11*time.Minute))
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := svc.OpenCapsule(ctx, c1.CapsuleID, "u-recipient", nil)
	require.NoError(t, err)

	got, err := svc.SearchCapsules(ctx, "u-recipient", "see you")
	require.NoError(t, err)
	total := 0
	for _, group := range got {
		total += len(group)
	}
	assert.Equal(t, 1, total)

	got, err = svc.SearchCapsules(ctx, "u-recipient", "no-such-text")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Searching requires a birth date for grouping.
	_, err = svc.SearchCapsules(ctx, "u-creator", "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestDeleteCapsule(t *testing.T) {
	svc, _ := newCapsuleService(t)
	ctx := context.Background()
	c := submitDraft(t, svc, time.Now().Add(time.Hour))

	require.NoError(t, svc.DeleteCapsule(ctx, c.CapsuleID))
	_, err := svc.GetCapsule(ctx, c.CapsuleID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFetchUserCapsules_Stream(t *testing.T) {
	svc, _ := newCapsuleService(t)
	ctx := context.Background()

	sub, err := svc.FetchUserCapsules(ctx, "u-recipient")
	require.NoError(t, err)
	defer sub.Cancel()

	// Initial empty snapshot.
	select {
	case lst := <-sub.C:
		assert.Empty(t, lst)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	c := submitDraft(t, svc, time.Now().Add(time.Hour))

	deadline := time.After(time.Second)
	for {
		select {
		case lst := <-sub.C:
			if len(lst) == 1 {
				assert.Equal(t, c.CapsuleID, lst[0].CapsuleID)
				return
			}
		case <-deadline:
			t.Fatalf("stream never delivered capsule %s", c.CapsuleID)
		}
	}
}
