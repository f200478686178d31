package models

import "time"

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// pendingSlot fills the nullable column that backs the "one pending row per
// pair" unique indexes. Resolved rows store NULL, which never collides.
const pendingSlot = "pending"

// PendingSlot returns a fresh pointer to the pending marker.
func PendingSlot() *string {
	v := pendingSlot
	return &v
}

// JoinRequest is a request by a non-member to enter a closed team.
type JoinRequest struct {
	BaseModel

	TeamID      string            `gorm:"type:uuid;not null;uniqueIndex:idx_join_requests_pending,priority:1" json:"team_id"`
	RequesterID string            `gorm:"type:uuid;not null;uniqueIndex:idx_join_requests_pending,priority:2;index" json:"requester_id"`
	PendingSlot *string           `gorm:"size:16;uniqueIndex:idx_join_requests_pending,priority:3" json:"-"`
	Status      JoinRequestStatus `gorm:"not null;size:16;index" json:"status"`
	DecidedBy   *string           `gorm:"type:uuid" json:"decided_by"`
	DecidedAt   *time.Time        `json:"decided_at"`

	Team      *Team    `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"team,omitempty"`
	Requester *Profile `gorm:"foreignKey:RequesterID;constraint:OnDelete:CASCADE" json:"requester,omitempty"`
}

func (JoinRequest) TableName() string {
	return "team_join_requests"
}
