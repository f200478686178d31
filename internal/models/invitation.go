package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
)

// TeamInvitation lets an owner or admin bring a specific profile into a team
// regardless of its access policy.
type TeamInvitation struct {
	BaseModel

	TeamID      string           `gorm:"type:uuid;not null;uniqueIndex:idx_team_invitations_pending,priority:1" json:"team_id"`
	InvitedID   string           `gorm:"type:uuid;not null;uniqueIndex:idx_team_invitations_pending,priority:2;index" json:"invited_id"`
	PendingSlot *string          `gorm:"size:16;uniqueIndex:idx_team_invitations_pending,priority:3" json:"-"`
	CreatedBy   string           `gorm:"type:uuid;not null" json:"created_by"`
	Status      InvitationStatus `gorm:"not null;size:16;index" json:"status"`
	AcceptedAt  *time.Time       `json:"accepted_at"`

	Team    *Team    `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"team,omitempty"`
	Invited *Profile `gorm:"foreignKey:InvitedID;constraint:OnDelete:CASCADE" json:"invited,omitempty"`
}
