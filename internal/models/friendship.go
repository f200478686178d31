package models

import "time"

// Friendship is a symmetric relation stored once per pair with the smaller
// profile ID first.
type Friendship struct {
	ProfileLowID  string    `gorm:"primaryKey;type:uuid" json:"profile_low_id"`
	ProfileHighID string    `gorm:"primaryKey;type:uuid;index" json:"profile_high_id"`
	CreatedAt     time.Time `json:"created_at"`

	Low  *Profile `gorm:"foreignKey:ProfileLowID;constraint:OnDelete:CASCADE" json:"-"`
	High *Profile `gorm:"foreignKey:ProfileHighID;constraint:OnDelete:CASCADE" json:"-"`
}

// NewFriendship orders the pair canonically.
func NewFriendship(a, b string) Friendship {
	if b < a {
		a, b = b, a
	}
	return Friendship{ProfileLowID: a, ProfileHighID: b}
}

// Other returns the friend of profileID in this pair.
func (f Friendship) Other(profileID string) string {
	if f.ProfileLowID == profileID {
		return f.ProfileHighID
	}
	return f.ProfileLowID
}

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

type FriendRequest struct {
	BaseModel

	RequesterID string              `gorm:"type:uuid;not null;uniqueIndex:idx_friend_requests_pending,priority:1" json:"requester_id"`
	RecipientID string              `gorm:"type:uuid;not null;uniqueIndex:idx_friend_requests_pending,priority:2;index" json:"recipient_id"`
	PendingSlot *string             `gorm:"size:16;uniqueIndex:idx_friend_requests_pending,priority:3" json:"-"`
	Status      FriendRequestStatus `gorm:"not null;size:16;index" json:"status"`
	DecidedAt   *time.Time          `json:"decided_at"`

	Requester *Profile `gorm:"foreignKey:RequesterID;constraint:OnDelete:CASCADE" json:"requester,omitempty"`
	Recipient *Profile `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"recipient,omitempty"`
}
