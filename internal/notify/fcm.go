package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
)

// FCM pushes through Firebase Cloud Messaging to the recipient's device
// token.
type FCM struct {
	client *messaging.Client
}

var _ Notifier = (*FCM)(nil)

// NewFCM initializes the Firebase app from ambient credentials.
func NewFCM(ctx context.Context) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &FCM{client: client}, nil
}

func (f *FCM) CapsuleReceived(ctx context.Context, ev Event) {
	token := ev.Recipient.DeviceToken
	if token == "" {
		return
	}
	sender := ev.SenderName
	if sender == "" {
		sender = "神秘人"
	}
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: "你收到一顆新的時空膠囊！",
			Body:  fmt.Sprintf("%s 寄來的膠囊將於 %s 開啟", sender, ev.Capsule.OpenDate.Local().Format("2006/01/02 15:04")),
		},
		Data: map[string]string{
			"capsuleId": ev.Capsule.CapsuleID,
		},
	}
	if _, err := f.client.Send(ctx, msg); err != nil {
		log.Warn().Err(err).
			Str("capsule_id", ev.Capsule.CapsuleID).
			Str("recipient_id", ev.Recipient.ID).
			Msg("push notification failed")
	}
}
