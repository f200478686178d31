package models

import (
	"time"

	"gorm.io/gorm"
)

// MemberRole is a profile's role inside a team. RoleNone denotes a non-member.
type MemberRole string

const (
	RoleNone   MemberRole = ""
	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
	RoleOwner  MemberRole = "owner"
)

func (r MemberRole) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// Membership links a profile to a team with a role and a commit counter.
type Membership struct {
	TeamID       string     `gorm:"primaryKey;type:uuid" json:"team_id"`
	ProfileID    string     `gorm:"primaryKey;type:uuid;index" json:"profile_id"`
	Role         MemberRole `gorm:"not null;size:16;index" json:"role"`
	TotalCommits *int64     `json:"total_commits"`
	JoinedAt     time.Time  `gorm:"not null" json:"joined_at"`

	Profile *Profile `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

func (Membership) TableName() string {
	return "team_members"
}

// BeforeCreate stamps the join time when the caller left it empty.
func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return nil
}

// Commits returns the counter value, treating a missing counter as zero.
func (m Membership) Commits() int64 {
	if m.TotalCommits == nil {
		return 0
	}
	return *m.TotalCommits
}
