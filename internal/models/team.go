package models

// AccessPolicy controls how non-members may enter a team.
type AccessPolicy string

const (
	AccessPolicyOpen   AccessPolicy = "open"
	AccessPolicyClosed AccessPolicy = "closed"
)

// Valid reports whether the policy is one of the known values.
func (p AccessPolicy) Valid() bool {
	return p == AccessPolicyOpen || p == AccessPolicyClosed
}

// Team is a named group of profiles with exactly one owner.
type Team struct {
	BaseModel

	Name         string       `gorm:"not null;size:100" json:"name"`
	Description  *string      `json:"description"`
	AvatarURL    *string      `json:"avatar_url"`
	AccessPolicy AccessPolicy `gorm:"not null;size:16;default:open" json:"access_policy"`
	OwnerID      string       `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner        *Profile     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	IsFeatured   bool         `gorm:"not null;default:false;index" json:"is_featured"`
	InviteCode   string       `gorm:"uniqueIndex;size:64;not null" json:"-"`

	Members []Membership `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
}
