package model

import "time"

// RecipientStatus is the per-recipient open flag stored on a capsule.
type RecipientStatus int

const (
	StatusPending RecipientStatus = 0
	StatusOpened  RecipientStatus = 1
)

// Recipient is one entry of a capsule's recipients map.
type Recipient struct {
	Status RecipientStatus `json:"status"`
}

// Content is one contributor's portion of a capsule.
type Content struct {
	Text     string `json:"text"`
	ImgURL   string `json:"imgUrl,omitempty"`
	AudioURL string `json:"audioUrl,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
	FromWhom string `json:"fromWhom"`
	ToWhom   string `json:"toWhom"`
}

// Location is the optional geofence attached to a location-locked capsule.
// Radius is in kilometres.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    int     `json:"radius"`
}

// ReplyMessage is one entry of a capsule's append-only reply list.
type ReplyMessage struct {
	UserID      string    `json:"userId"`
	Text        string    `json:"text"`
	CreatedTime time.Time `json:"createdTime"`
	ID          string    `json:"id"`
}

// Capsule is the top-level capsule document. Recipients and content are
// keyed by user id; a capsule may have several recipients (group capsules)
// and several contributors (shared capsules).
type Capsule struct {
	CapsuleID        string               `json:"capsuleId"`
	CreatorID        string               `json:"creatorId"`
	Recipients       map[string]Recipient `json:"recipients"`
	Content          map[string]Content   `json:"content"`
	EmotionTagLabels []string             `json:"emotionTagLabels,omitempty"`
	ImageTagLabels   []int                `json:"imageTagLabels,omitempty"`
	CreatedDate      time.Time            `json:"createdDate"`
	OpenDate         time.Time            `json:"openDate"`
	Location         *Location            `json:"location,omitempty"`
	IsAnonymous      bool                 `json:"isAnonymous"`
	IsLocationLocked bool                 `json:"isLocationLocked"`
	IsShared         bool                 `json:"isShared"`
	ReplyMessages    []ReplyMessage       `json:"replyMessages,omitempty"`
	UpdatedDate      *time.Time           `json:"updatedDate,omitempty"`
}

// Friend is a cached per-user summary of a counterpart, refreshed on every
// capsule exchange and unique by ID within a user's friend list.
type Friend struct {
	ID                    string    `json:"id"`
	FullName              string    `json:"fullName"`
	Avatar                string    `json:"avatar"`
	LatestInteractionDate time.Time `json:"latestInteractionDate"`
}

// User is the user document. The capsule id lists hold references; the
// capsule documents themselves are the authority for content and state.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email,omitempty"`
	Name                string     `json:"name,omitempty"`
	AvatarURL           string     `json:"avatarUrl,omitempty"`
	CreatedCapsulesIds  []string   `json:"createdCapsulesIds"`
	ReceivedCapsulesIds []string   `json:"receivedCapsulesIds"`
	SharedCapsulesIds   []string   `json:"sharedCapsulesIds"`
	Friends             []Friend   `json:"friends"`
	UserIdentifier      string     `json:"userIdentifier,omitempty"`
	BirthDate           *time.Time `json:"birthDate,omitempty"`
	DeviceToken         string     `json:"deviceToken,omitempty"`
}

// CapsuleUpdate carries everything the delivery synchronizer writes into a
// capsule document when a draft is finalized.
type CapsuleUpdate struct {
	UserID           string
	Content          Content
	Recipient        string
	OpenDate         time.Time
	Location         *Location
	IsAnonymous      bool
	IsLocationLocked bool
	IsShared         bool
	EmotionTagLabels []string
	ImageTagLabels   []int
}
