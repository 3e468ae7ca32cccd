package query

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/siminyang/aboutxtime/internal/model"
)

var birth = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func openedCapsule(id, creatorID, text string, open time.Time) *model.Capsule {
	return &model.Capsule{
		CapsuleID:   id,
		CreatorID:   creatorID,
		Recipients:  map[string]model.Recipient{"u-me": {Status: model.StatusOpened}},
		Content:     map[string]model.Content{creatorID: {Text: text}},
		CreatedDate: open.Add(-30 * 24 * time.Hour),
		OpenDate:    open,
	}
}

func TestAgeAtOpen(t *testing.T) {
	assert.Equal(t, 25, AgeAtOpen(birth, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 24, AgeAtOpen(birth, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)))
	// On the birthday itself the year has completed.
	assert.Equal(t, 25, AgeAtOpen(birth, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestWeekWithinYear(t *testing.T) {
	// 15 days after the 25th birthday: two whole weeks elapsed.
	assert.Equal(t, 2, WeekWithinYear(birth, time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)))
	// 8 days: one whole week.
	assert.Equal(t, 1, WeekWithinYear(birth, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)))
	// Late in the year folds back into 1..52.
	assert.Equal(t, 52, WeekWithinYear(birth, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestGroupByAge(t *testing.T) {
	older := openedCapsule("cap-1", "u-a", "first", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	newer := openedCapsule("cap-2", "u-a", "second", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	otherAge := openedCapsule("cap-3", "u-a", "third", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	unopened := openedCapsule("cap-4", "u-a", "fourth", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	unopened.Recipients["u-me"] = model.Recipient{Status: model.StatusPending}
	notMine := openedCapsule("cap-5", "u-a", "fifth", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	notMine.Recipients = map[string]model.Recipient{"u-else": {Status: model.StatusOpened}}

	groups := GroupByAge([]*model.Capsule{older, newer, otherAge, unopened, notMine}, "u-me", birth)

	assert.Len(t, groups, 2)
	assert.Len(t, groups[25], 2)
	assert.Len(t, groups[24], 1)
	// Descending by open date within a group.
	assert.Equal(t, "cap-2", groups[25][0].CapsuleID)
	assert.Equal(t, "cap-1", groups[25][1].CapsuleID)
}

func TestSearch(t *testing.T) {
	open := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	happy := openedCapsule("cap-1", "u-a", "happy day", open)
	sad := openedCapsule("cap-2", "u-b", "sad day", open)

	t.Run("matches content text", func(t *testing.T) {
		got := Search([]*model.Capsule{happy, sad}, "u-me", birth, "happy")
		assert.Len(t, got[25], 1)
		assert.Equal(t, "cap-1", got[25][0].CapsuleID)
	})

	t.Run("empty query is identity", func(t *testing.T) {
		got := Search([]*model.Capsule{happy, sad}, "u-me", birth, "")
		assert.Len(t, got[25], 2)
	})

	t.Run("case insensitive", func(t *testing.T) {
		got := Search([]*model.Capsule{happy, sad}, "u-me", birth, "HAPPY")
		assert.Len(t, got[25], 1)
	})

	t.Run("matches creator id", func(t *testing.T) {
		got := Search([]*model.Capsule{happy, sad}, "u-me", birth, "u-b")
		assert.Len(t, got[25], 1)
		assert.Equal(t, "cap-2", got[25][0].CapsuleID)
	})

	t.Run("matches emotion tags", func(t *testing.T) {
		tagged := openedCapsule("cap-3", "u-c", "plain", open)
		tagged.EmotionTagLabels = []string{"excited", "grateful"}
		got := Search([]*model.Capsule{happy, tagged}, "u-me", birth, "grate")
		assert.Len(t, got[25], 1)
		assert.Equal(t, "cap-3", got[25][0].CapsuleID)
	})

	t.Run("matches reply text", func(t *testing.T) {
		replied := openedCapsule("cap-4", "u-c", "plain", open)
		replied.ReplyMessages = []model.ReplyMessage{{ID: "r1", UserID: "u-me", Text: "thank you so much"}}
		got := Search([]*model.Capsule{happy, replied}, "u-me", birth, "thank")
		assert.Len(t, got[25], 1)
	})

	t.Run("image label query matches tag indices", func(t *testing.T) {
		dogPhoto := openedCapsule("cap-5", "u-c", "plain", open)
		dogPhoto.ImageTagLabels = []int{16} // dog
		got := Search([]*model.Capsule{happy, dogPhoto}, "u-me", birth, "dog")
		assert.Len(t, got[25], 1)
		assert.Equal(t, "cap-5", got[25][0].CapsuleID)
	})

	t.Run("no match", func(t *testing.T) {
		got := Search([]*model.Capsule{happy, sad}, "u-me", birth, "nothing-here")
		assert.Empty(t, got)
	})
}

func TestPendingTray(t *testing.T) {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	var capsules []*model.Capsule
	for i := 0; i < 14; i++ {
		c := openedCapsule(fmt.Sprintf("cap-%d", i), "u-a", "text", base.Add(time.Duration(14-i)*time.Hour))
		c.Recipients["u-me"] = model.Recipient{Status: model.StatusPending}
		capsules = append(capsules, c)
	}
	opened := openedCapsule("cap-opened", "u-a", "text", base)
	capsules = append(capsules, opened)

	tray := PendingTray(capsules, "u-me")

	assert.Len(t, tray, PendingTrayLimit)
	// Nearest open date first.
	assert.Equal(t, "cap-13", tray[0].CapsuleID)
	for i := 1; i < len(tray); i++ {
		assert.False(t, tray[i].OpenDate.Before(tray[i-1].OpenDate))
	}
	for _, c := range tray {
		assert.NotEqual(t, "cap-opened", c.CapsuleID)
	}
}
