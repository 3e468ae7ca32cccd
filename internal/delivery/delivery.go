// Package delivery materializes capsule drafts: it validates the draft,
// uploads media, writes the capsule document and fans out the side effects
// to both parties' user records.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/siminyang/aboutxtime/internal/blob"
	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/notify"
	"github.com/siminyang/aboutxtime/internal/store"
)

// PlaceholderText is the compose-screen prompt; a draft whose text still
// equals it counts as empty.
const PlaceholderText = "今天天氣很好，覺得充滿動力！ (必填)"

// MinLeadTime is the minimum gap between submission and the open date.
const MinLeadTime = 10 * time.Minute

// Name sentinels the compose flow uses when the author leaves the
// to/from fields untouched.
const (
	sentinelToSelf      = "You"
	sentinelFromUnknown = "Unknown"
)

// Draft is an assembled but not yet persisted capsule contribution. Media
// fields are local file paths; they are uploaded on submit and the files
// removed afterwards.
type Draft struct {
	// CapsuleID is empty for a new capsule; set, it addresses an existing
	// shared capsule to contribute to.
	CapsuleID   string
	CreatorID   string
	CreatorName string
	Recipient   string

	Text     string
	FromWhom string
	ToWhom   string

	ImageFile string
	AudioFile string
	VideoFile string

	OpenDate         time.Time
	Location         *model.Location
	IsAnonymous      bool
	IsLocationLocked bool
	IsShared         bool
	EmotionTagLabels []string
	ImageTagLabels   []int
}

// ValidationError reports every failed precondition at once.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid draft:\n" + strings.Join(e.Messages, "\n")
}

// UploadError joins the failures of the parallel media uploads. Blobs that
// did land stay put; re-submission overwrites them by the same key.
type UploadError struct {
	Messages []string
}

func (e *UploadError) Error() string {
	return "media upload failed:\n" + strings.Join(e.Messages, "\n")
}

// Synchronizer performs draft submission. All collaborators are injected.
type Synchronizer struct {
	store    store.Store
	blobs    blob.Store
	notifier notify.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func New(st store.Store, blobs blob.Store, notifier notify.Notifier, log zerolog.Logger) *Synchronizer {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Synchronizer{
		store:    st,
		blobs:    blobs,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Submit materializes the draft into a Pending capsule. On success the
// capsule is durable for the recipient and the draft's local media files
// have been removed. Failures after the shell is created leave partial
// state behind; there is no compensating rollback.
func (s *Synchronizer) Submit(ctx context.Context, d Draft) (*model.Capsule, error) {
	if err := s.validate(d); err != nil {
		return nil, err
	}

	ok, err := s.store.Users().Exists(ctx, d.Recipient)
	if err != nil {
		return nil, fmt.Errorf("check recipient: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("recipient %s: %w", d.Recipient, model.ErrNotFound)
	}

	capsuleID := d.CapsuleID
	if capsuleID == "" {
		shell, err := s.store.Capsules().Create(ctx, d.CreatorID)
		if err != nil {
			return nil, fmt.Errorf("create capsule shell: %w", err)
		}
		capsuleID = shell.CapsuleID
	} else {
		ok, err := s.store.Capsules().Exists(ctx, capsuleID)
		if err != nil {
			return nil, fmt.Errorf("check capsule: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("capsule %s: %w", capsuleID, model.ErrNotFound)
		}
	}

	content := model.Content{
		Text:     d.Text,
		FromWhom: d.FromWhom,
		ToWhom:   d.ToWhom,
	}
	if err := s.uploadMedia(ctx, capsuleID, d, &content); err != nil {
		return nil, err
	}

	upd := model.CapsuleUpdate{
		UserID:           d.CreatorID,
		Content:          content,
		Recipient:        d.Recipient,
		OpenDate:         d.OpenDate,
		Location:         d.Location,
		IsAnonymous:      d.IsAnonymous,
		IsLocationLocked: d.IsLocationLocked,
		IsShared:         d.IsShared,
		EmotionTagLabels: d.EmotionTagLabels,
		ImageTagLabels:   d.ImageTagLabels,
	}
	if err := s.store.Capsules().ApplyUpdate(ctx, capsuleID, upd); err != nil {
		return nil, fmt.Errorf("write capsule: %w", err)
	}

	if err := s.store.Users().AppendCapsuleRef(ctx, d.CreatorID, store.FieldCreated, capsuleID); err != nil {
		return nil, fmt.Errorf("append to creator list: %w", err)
	}

	if d.Recipient == d.CreatorID {
		// Self-addressed: both lists on the same user, no friend mutation.
		if err := s.store.Users().AppendCapsuleRef(ctx, d.CreatorID, store.FieldReceived, capsuleID); err != nil {
			return nil, fmt.Errorf("append to received list: %w", err)
		}
	} else {
		if err := s.fanOutToRecipient(ctx, capsuleID, d); err != nil {
			return nil, err
		}
		s.notifyRecipient(ctx, capsuleID, d)
	}

	s.removeLocalMedia(d)

	return s.store.Capsules().Get(ctx, capsuleID)
}

func (s *Synchronizer) validate(d Draft) error {
	var msgs []string
	if d.CreatorID == "" {
		msgs = append(msgs, "creator id is required")
	}
	text := strings.TrimSpace(d.Text)
	if text == "" || text == PlaceholderText {
		msgs = append(msgs, "message text is required")
	}
	if !d.IsAnonymous && strings.TrimSpace(d.FromWhom) == "" {
		msgs = append(msgs, "sender name is required")
	}
	if strings.TrimSpace(d.ToWhom) == "" {
		msgs = append(msgs, "recipient name is required")
	}
	switch {
	case d.Recipient == "":
		msgs = append(msgs, "recipient id is required")
	case strings.Contains(d.Recipient, "/"):
		msgs = append(msgs, "recipient id must not contain a path separator")
	}
	if d.OpenDate.Before(s.now().Add(MinLeadTime)) {
		msgs = append(msgs, "open date must be at least 10 minutes in the future")
	}
	if d.IsLocationLocked && d.Location == nil {
		msgs = append(msgs, "location is required for a location-locked capsule")
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

// uploadMedia pushes the attached files concurrently and fills the content
// URLs. All three are joined before returning; any failure aborts the
// submission with every collected message.
func (s *Synchronizer) uploadMedia(ctx context.Context, capsuleID string, d Draft, content *model.Content) error {
	type upload struct {
		file        string
		path        string
		contentType string
		dest        *string
	}
	uploads := []upload{
		{d.ImageFile, blob.ImagePath(capsuleID, d.CreatorID), "image/jpeg", &content.ImgURL},
		{d.AudioFile, blob.AudioPath(capsuleID, d.CreatorID), "audio/m4a", &content.AudioURL},
		{d.VideoFile, blob.VideoPath(capsuleID, d.CreatorID), "video/mp4", &content.VideoURL},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(uploads))
	for i, up := range uploads {
		if up.file == "" {
			continue
		}
		wg.Add(1)
		go func(i int, up upload) {
			defer wg.Done()
			f, err := os.Open(up.file)
			if err != nil {
				errs[i] = fmt.Errorf("open %s: %w", up.file, err)
				return
			}
			defer func() { _ = f.Close() }()
			url, err := s.blobs.Put(ctx, up.path, up.contentType, f)
			if err != nil {
				errs[i] = err
				return
			}
			*up.dest = url
		}(i, up)
	}
	wg.Wait()

	var msgs []string
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	if len(msgs) > 0 {
		return &UploadError{Messages: msgs}
	}
	return nil
}

// fanOutToRecipient upserts the mutual friend entries and appends the
// capsule to the recipient's received list.
func (s *Synchronizer) fanOutToRecipient(ctx context.Context, capsuleID string, d Draft) error {
	now := s.now().UTC()

	recipientName := d.ToWhom
	if recipientName == sentinelToSelf {
		recipientName = ""
	}
	if err := s.store.Users().UpsertFriend(ctx, d.CreatorID, model.Friend{
		ID:                    d.Recipient,
		FullName:              recipientName,
		Avatar:                randomAvatar(),
		LatestInteractionDate: now,
	}); err != nil {
		return fmt.Errorf("upsert creator friend entry: %w", err)
	}

	creatorName := d.FromWhom
	if creatorName == sentinelFromUnknown || creatorName == "" {
		creatorName = d.CreatorName
	}
	if err := s.store.Users().UpsertFriend(ctx, d.Recipient, model.Friend{
		ID:                    d.CreatorID,
		FullName:              creatorName,
		Avatar:                randomAvatar(),
		LatestInteractionDate: now,
	}); err != nil {
		return fmt.Errorf("upsert recipient friend entry: %w", err)
	}

	if err := s.store.Users().AppendCapsuleRef(ctx, d.Recipient, store.FieldReceived, capsuleID); err != nil {
		return fmt.Errorf("append to received list: %w", err)
	}
	return nil
}

// notifyRecipient is best effort; a dead device token must not fail a
// submission that already committed.
func (s *Synchronizer) notifyRecipient(ctx context.Context, capsuleID string, d Draft) {
	recipient, err := s.store.Users().Get(ctx, d.Recipient)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.log.Warn().Err(err).Str("capsule_id", capsuleID).Msg("fetch recipient for notification")
		}
		return
	}
	capsule, err := s.store.Capsules().Get(ctx, capsuleID)
	if err != nil {
		s.log.Warn().Err(err).Str("capsule_id", capsuleID).Msg("fetch capsule for notification")
		return
	}
	sender := ""
	if !d.IsAnonymous {
		sender = d.FromWhom
		if sender == "" || sender == sentinelFromUnknown {
			sender = d.CreatorName
		}
	}
	s.notifier.CapsuleReceived(ctx, notify.Event{
		Capsule:    capsule,
		Recipient:  recipient,
		SenderName: sender,
	})
}

func (s *Synchronizer) removeLocalMedia(d Draft) {
	for _, file := range []string{d.ImageFile, d.AudioFile, d.VideoFile} {
		if file == "" {
			continue
		}
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("file", file).Msg("remove local media file")
		}
	}
}

func randomAvatar() string {
	return fmt.Sprintf("planet%d", rand.IntN(18)+1)
}
