package models

import "time"

// DailyStat holds the commit activity of a profile for one UTC day. Rows are
// written by the external ingestion job.
type DailyStat struct {
	ProfileID   string    `gorm:"primaryKey;type:uuid" json:"profile_id"`
	Date        time.Time `gorm:"primaryKey;type:date" json:"date"`
	CommitCount int64     `gorm:"not null;default:0" json:"commit_count"`
	LinesAdded  int64     `gorm:"not null;default:0" json:"lines_added"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Profile *Profile `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"-"`
}

// Day truncates t to the UTC day DailyStat rows are keyed by.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
