package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditSubject is the kind of record an activity entry is about.
type AuditSubject string

const (
	AuditSubjectTeam    AuditSubject = "team"
	AuditSubjectProfile AuditSubject = "profile"
)

// Valid reports whether s is a known subject kind.
func (s AuditSubject) Valid() bool {
	return s == AuditSubjectTeam || s == AuditSubjectProfile
}

// AuditLog records one team or profile mutation. SubjectID is the team ID for
// team activity and the affected profile for profile and friend activity.
type AuditLog struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	ActorID     *string        `gorm:"type:uuid;index" json:"actor_id"`
	Username    string         `json:"username"`
	Action      string         `gorm:"not null;index" json:"action"`
	SubjectType AuditSubject   `gorm:"size:16;index:idx_audit_subject,priority:1" json:"subject_type"`
	SubjectID   string         `gorm:"index:idx_audit_subject,priority:2" json:"subject_id"`
	Result      string         `gorm:"not null" json:"result"`
	IPAddress   string         `json:"ip_address"`
	UserAgent   string         `json:"user_agent"`
	Metadata    datatypes.JSON `json:"metadata"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
