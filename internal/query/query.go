// Package query implements the read-side aggregations over a user's
// capsules: age grouping, week numbering, free-text search and the
// pending tray.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/tagging"
)

// PendingTrayLimit caps the pending tray at the ten nearest capsules.
const PendingTrayLimit = 10

// AgeAtOpen is the whole calendar years between birthDate and openDate.
func AgeAtOpen(birthDate, openDate time.Time) int {
	years := openDate.Year() - birthDate.Year()
	anniversary := birthDate.AddDate(years, 0, 0)
	if openDate.Before(anniversary) {
		years--
	}
	return years
}

// WeekWithinYear numbers the week of the capsule's open date within the
// recipient's year of age: whole weeks since the birthday marking that
// age, folded into 1..52.
func WeekWithinYear(birthDate, openDate time.Time) int {
	age := AgeAtOpen(birthDate, openDate)
	birthday := birthDate.AddDate(age, 0, 0)
	weeks := int(openDate.Sub(birthday).Hours() / (24 * 7))
	return (weeks-1)%52 + 1
}

// GroupByAge buckets the capsules the user has already opened by the
// user's age at each capsule's open date. Each bucket is sorted by open
// date descending.
func GroupByAge(capsules []*model.Capsule, userID string, birthDate time.Time) map[int][]*model.Capsule {
	groups := make(map[int][]*model.Capsule)
	for _, c := range capsules {
		r, ok := c.Recipients[userID]
		if !ok || r.Status != model.StatusOpened {
			continue
		}
		age := AgeAtOpen(birthDate, c.OpenDate)
		groups[age] = append(groups[age], c)
	}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return group[i].OpenDate.After(group[j].OpenDate)
		})
	}
	return groups
}

// Search filters capsules by a case-insensitive substring match against
// creator id, content text, emotion tags and reply text. A query that
// names a known image label additionally matches capsules tagged with it.
// The empty query is the identity. The result is age-grouped like
// GroupByAge.
func Search(capsules []*model.Capsule, userID string, birthDate time.Time, query string) map[int][]*model.Capsule {
	query = strings.TrimSpace(query)
	if query == "" {
		return GroupByAge(capsules, userID, birthDate)
	}

	imageTag, hasImageTag := tagging.Lookup(query)

	var filtered []*model.Capsule
	for _, c := range capsules {
		if matches(c, query, imageTag, hasImageTag) {
			filtered = append(filtered, c)
		}
	}
	return GroupByAge(filtered, userID, birthDate)
}

func matches(c *model.Capsule, query string, imageTag int, hasImageTag bool) bool {
	if containsFold(c.CreatorID, query) {
		return true
	}
	for _, content := range c.Content {
		if containsFold(content.Text, query) {
			return true
		}
	}
	for _, label := range c.EmotionTagLabels {
		if containsFold(label, query) {
			return true
		}
	}
	if hasImageTag {
		for _, tag := range c.ImageTagLabels {
			if tag == imageTag {
				return true
			}
		}
	}
	for _, reply := range c.ReplyMessages {
		if containsFold(reply.Text, query) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// PendingTray selects the user's unopened capsules, nearest open date
// first, capped at PendingTrayLimit.
func PendingTray(capsules []*model.Capsule, userID string) []*model.Capsule {
	var pending []*model.Capsule
	for _, c := range capsules {
		if r, ok := c.Recipients[userID]; ok && r.Status == model.StatusPending {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].OpenDate.Before(pending[j].OpenDate)
	})
	if len(pending) > PendingTrayLimit {
		pending = pending[:PendingTrayLimit]
	}
	return pending
}
